package routes

import (
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/controllers"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	authCtl := controllers.NewAuthController(s)
	userCtl := controllers.NewUserController(s)
	dirCtl := controllers.NewDirectoryController(s)
	loanCtl := controllers.NewLoanController(s)
	resCtl := controllers.NewReservationController(s)
	dmgCtl := controllers.NewDamageController(s)
	repCtl := controllers.NewReportController(s)

	// 复用的中间件
	authMW := app.AuthRequired(a.Sessions, a.Tokens, a.Repo)
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, 5*time.Minute, a.Logger)
	borrower := app.RequireRole(models.RoleBorrower)
	staff := app.RequireRole(models.RoleStaff)
	admin := app.RequireRole(models.RoleAdmin)

	api := r.Group("/api")
	api.GET("/health", repCtl.Health)

	// ------------------------------
	// 认证（公开 + 登录后）
	// ------------------------------
	pub := api.Group("/auth")
	{
		pub.POST("/register", authCtl.Register)
		pub.POST("/login", authCtl.Login)
	}

	authed := api.Group("", authMW, seenMW)
	{
		authed.POST("/auth/logout", authCtl.Logout)
		authed.GET("/auth/me", authCtl.Me)
		authed.POST("/auth/change-password", authCtl.ChangePassword)
	}

	// ------------------------------
	// 读：borrower 及以上
	// ------------------------------
	read := authed.Group("", borrower)
	{
		read.GET("/students", dirCtl.ListStudents)
		read.GET("/students/:id", dirCtl.GetStudent)
		read.GET("/search/students", dirCtl.ListStudents)
		read.GET("/filters/programs", dirCtl.Programs)

		read.GET("/equipment", dirCtl.ListEquipment)
		read.GET("/equipment/available", dirCtl.AvailableEquipment)
		read.GET("/equipment/:id", dirCtl.GetEquipment)
		read.GET("/search/equipment", dirCtl.ListEquipment)
		read.GET("/filters/categories", dirCtl.Categories)
		read.GET("/filters/conditions", dirCtl.Conditions)

		read.GET("/staff", dirCtl.ListStaff)

		read.POST("/loans/checkout", loanCtl.Checkout)
		read.POST("/loans/:id/return", loanCtl.Return)
		read.POST("/loans/:id/return-with-damage", loanCtl.ReturnWithDamage)
		read.POST("/loans/:id/renew", loanCtl.Renew)
		read.GET("/loans", loanCtl.List)
		read.GET("/loans/active", loanCtl.Active)
		read.GET("/loans/overdue", loanCtl.Overdue)
		read.GET("/loans/:id", loanCtl.Get)
		read.GET("/loans/:id/return-detail", loanCtl.ReturnDetail)
		read.GET("/loans/:id/email-logs", loanCtl.EmailLogs)
		read.GET("/search/loans", loanCtl.List)

		read.POST("/reservations", resCtl.Create)
		read.GET("/reservations", resCtl.List)
		read.GET("/reservations/:id", resCtl.Get)
		read.GET("/reservations/equipment/:id", resCtl.ByEquipment)
		read.GET("/reservations/student/:id", resCtl.ByStudent)

		read.GET("/damage-logs", dmgCtl.List)
		read.GET("/damage-logs/:id", dmgCtl.Get)
		read.GET("/damage-logs/loan/:id", dmgCtl.ByLoan)
		read.GET("/damage-logs/student/:id", dmgCtl.ByStudent)
	}

	// ------------------------------
	// 写目录、预约、损坏、报表：staff 及以上
	// ------------------------------
	mgmt := authed.Group("", staff)
	{
		mgmt.POST("/students", dirCtl.CreateStudent)
		mgmt.PUT("/students/:id", dirCtl.UpdateStudent)
		mgmt.DELETE("/students/:id", dirCtl.DeleteStudent)

		mgmt.POST("/equipment", dirCtl.CreateEquipment)
		mgmt.PUT("/equipment/:id", dirCtl.UpdateEquipment)
		mgmt.DELETE("/equipment/:id", dirCtl.DeleteEquipment)

		mgmt.POST("/staff", dirCtl.CreateStaff)

		mgmt.PUT("/reservations/:id", resCtl.Update)
		mgmt.DELETE("/reservations/:id", resCtl.Cancel)

		mgmt.POST("/damage-logs", dmgCtl.Create)
		mgmt.PUT("/damage-logs/:id", dmgCtl.Update)

		mgmt.GET("/reports/overdue-loans", repCtl.OverdueLoans)
		mgmt.GET("/reports/overdue-analysis", repCtl.OverdueLoans)
		mgmt.GET("/reports/equipment-status", repCtl.EquipmentStatus)
		mgmt.GET("/reports/loan-activity", repCtl.LoanActivity)
		mgmt.GET("/reports/damage-analysis", repCtl.DamageAnalysis)
		mgmt.GET("/reports/student-activity", repCtl.StudentActivity)
	}

	// ------------------------------
	// 管理员
	// ------------------------------
	adm := authed.Group("", admin)
	{
		adm.GET("/audit-logs", repCtl.AuditLogs)
		adm.POST("/admin/overdue-sweep", repCtl.RunSweep)

		adm.GET("/users", userCtl.ListUsers)
		adm.GET("/users/:id", userCtl.GetUser)
		adm.PUT("/users/:id", userCtl.UpdateUser)
		adm.POST("/users/:id/disable", userCtl.DisableUser)
		adm.DELETE("/users/:id", userCtl.DeleteUser)
	}
}
