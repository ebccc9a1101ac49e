package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
)

type stubSessions struct {
	sessions map[string]*session.AppSession
	deleted  []string
}

func (s *stubSessions) Get(_ context.Context, id string) (*session.AppSession, error) {
	if as, ok := s.sessions[id]; ok {
		return as, nil
	}
	return nil, session.ErrNoSession
}

func (s *stubSessions) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubUsers map[string]*models.User

func (u stubUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, db.ErrNotFound
}

func newTestRouter(sessions *stubSessions, tokens *session.Tokens, users stubUsers, min models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", AuthRequired(sessions, tokens, users), RequireRole(min), func(c *gin.Context) {
		c.JSON(http.StatusOK, H{"user": UserID(c), "role": RoleOf(c)})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	tokens := session.NewTokens("secret", time.Hour)
	users := stubUsers{
		"u-admin":    {ID: "u-admin", Username: "root", Role: models.RoleAdmin, Status: models.UserActive},
		"u-borrower": {ID: "u-borrower", Username: "ana", Role: models.RoleBorrower, Status: models.UserActive},
		"u-disabled": {ID: "u-disabled", Username: "old", Role: models.RoleStaff, Status: models.UserDisabled},
	}
	sessions := &stubSessions{sessions: map[string]*session.AppSession{
		"sid-ok":       {UserID: "u-admin", Role: "admin"},
		"sid-disabled": {UserID: "u-disabled", Role: "staff"},
	}}
	router := newTestRouter(sessions, tokens, users, models.RoleStaff)

	bearerFor := func(uid, role string) string {
		raw, _, err := tokens.Issue(uid, role)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		return "Bearer " + raw
	}

	cases := []struct {
		name   string
		cookie string
		auth   string
		want   int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"valid cookie", "sid-ok", "", http.StatusOK},
		{"unknown cookie", "sid-nope", "", http.StatusUnauthorized},
		{"disabled user cookie", "sid-disabled", "", http.StatusUnauthorized},
		{"admin bearer", "", bearerFor("u-admin", "admin"), http.StatusOK},
		{"borrower below staff", "", bearerFor("u-borrower", "borrower"), http.StatusForbidden},
		// role comes from the user row, not the token claim
		{"borrower claiming admin", "", bearerFor("u-borrower", "admin"), http.StatusForbidden},
		{"bad token", "", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"deleted user", "", bearerFor("u-gone", "admin"), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AppSessionCookie, Value: tc.cookie})
			}
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}

	if len(sessions.deleted) != 1 || sessions.deleted[0] != "sid-disabled" {
		t.Fatalf("deleted sessions = %v", sessions.deleted)
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRole(models.RoleBorrower), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestBearer(t *testing.T) {
	if _, ok := bearer("Basic abc"); ok {
		t.Fatal("basic auth accepted")
	}
	if _, ok := bearer("Bearer   "); ok {
		t.Fatal("empty bearer accepted")
	}
	if raw, ok := bearer("Bearer tok"); !ok || raw != "tok" {
		t.Fatalf("bearer = %q %v", raw, ok)
	}
}
