package service

import (
	"context"
	"log/slog"
	"time"

	"go-account-auth/internal/event"
	"go-account-auth/internal/model"
)

type AuditWriter interface {
	Log(ctx context.Context, entry model.AuditEntry) error
}

// AuditService records account events published on the bus. Without a writer
// the entries only go to the log.
type AuditService struct {
	bus    event.Bus
	writer AuditWriter
	logger *slog.Logger
}

func NewAuditService(bus event.Bus, writer AuditWriter, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{bus: bus, writer: writer, logger: logger}
}

// Run consumes events until ctx is done. It returns once the subscription is
// closed, so callers can wait on it during shutdown.
func (s *AuditService) Run(ctx context.Context) {
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			s.drain(events)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(e)
		}
	}
}

func (s *AuditService) drain(events <-chan event.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(e)
		default:
			return
		}
	}
}

func (s *AuditService) record(e event.Event) {
	entry := model.AuditEntry{
		Action:     string(e.Type),
		ActorID:    e.ActorID,
		OccurredAt: e.Timestamp,
		Payload:    e.Payload,
	}

	if s.writer == nil {
		s.logger.Info("audit", "action", entry.Action, "actor_id", entry.ActorID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writer.Log(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "action", entry.Action, "actor_id", entry.ActorID, "error", err)
	}
}
