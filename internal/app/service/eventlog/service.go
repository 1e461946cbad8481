package eventlog

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fabriq/billing/internal/models"
	"github.com/fabriq/billing/pkg/logctx"
	"github.com/fabriq/billing/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// MarkProcessed records an event id in the processed-event log.
// Returns false when the id was already recorded (duplicate delivery).
// A non-nil error means the gate itself failed and the event's novelty is
// unknown; the caller decides whether to proceed.
func (s *Service) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	rec := &models.WebhookEvent{
		ID:        tool.GenerateUUIDV7(),
		EventID:   eventID,
		EventType: eventType,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SaveLog asynchronously persists an audit log entry. Best-effort: failures
// are logged, never surfaced. Nil input is ignored.
func (s *Service) SaveLog(ctx context.Context, entry *models.WebhookEventLog) {
	go func() {
		if entry == nil {
			return
		}
		if entry.ID == "" {
			entry.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook event log: %v", err)
		}
	}()
}
