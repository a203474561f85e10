package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

const defaultWriteTimeout = 5 * time.Second

// Sink mirrors committed audit entries to a secondary store.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry *models.AuditLog) error
}

type Recorder struct {
	repo    repository.AuditLogRepository
	sinks   []Sink
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Recorder)

func WithSinks(sinks ...Sink) Option {
	return func(r *Recorder) { r.sinks = append(r.sinks, sinks...) }
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRecorder(repo repository.AuditLogRepository, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		repo:    repo,
		logger:  logger,
		timeout: defaultWriteTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes the event and fans it out to the sinks. It never fails the
// caller: errors are logged and dropped. The write runs on a context that
// survives cancellation of ctx but is bounded by the recorder's timeout.
func (r *Recorder) Record(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	entry := r.toEntry(event)

	if err := r.repo.Append(ctx, entry); err != nil {
		r.logger.Error("Failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("business_id", entry.BusinessID),
			zap.Error(err))
		return
	}

	if len(r.sinks) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range r.sinks {
		g.Go(func() error {
			if err := sink.Write(gctx, entry); err != nil {
				r.logger.Warn("Audit sink write failed",
					zap.String("sink", sink.Name()),
					zap.String("action", entry.Action),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Recorder) List(ctx context.Context, businessID string, filter repository.AuditFilter) ([]*models.AuditLog, error) {
	return r.repo.ListByBusiness(ctx, businessID, filter)
}

// PurgeOlderThan is the only deletion path for audit rows.
func (r *Recorder) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := r.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info("Purged audit logs",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func (r *Recorder) toEntry(event Event) *models.AuditLog {
	severity := event.Severity
	if severity == "" {
		severity = models.SeverityLow
	}

	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		BusinessID: event.BusinessID,
		AdminID:    optional(event.AdminID),
		StaffID:    optional(event.StaffID),
		Action:     event.Action,
		Severity:   severity,
		IPAddress:  optional(event.IPAddress),
		CreatedAt:  r.now(),
	}

	if len(event.Details) > 0 {
		details, err := json.Marshal(event.Details)
		if err != nil {
			r.logger.Warn("Dropping unserialisable audit details",
				zap.String("action", event.Action),
				zap.Error(err))
		} else {
			entry.Details = details
		}
	}
	return entry
}
