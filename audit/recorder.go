package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/datatypes"
)

// Store appends audit rows.
type Store interface {
	CreateAuditLog(ctx context.Context, l *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// Recorder appends an audit entry for every mutating operation. Write
// failures are logged and swallowed so they never abort the caller.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, action models.AuditAction, table, recordID string, details any) {
	logger := r.logger.With("action", action, "table", table, "record_id", recordID)

	var raw datatypes.JSON
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			logger.Error("marshal audit details", "error", err)
			return
		}
		raw = datatypes.JSON(b)
	}

	entry := &models.AuditLog{
		Action:   action,
		Table:    table,
		RecordID: recordID,
		Details:  raw,
	}
	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		logger.Error("write audit log", "error", err)
	}
}

// Recent returns the newest entries first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return r.store.ListAuditLogs(ctx, limit)
}
