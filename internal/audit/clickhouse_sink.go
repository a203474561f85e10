package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"hybrid-auth-service/internal/models"
)

const (
	createAuditEventsTable = `
CREATE TABLE IF NOT EXISTS audit_events (
    id          UUID,
    business_id String,
    admin_id    String,
    staff_id    String,
    action      LowCardinality(String),
    severity    LowCardinality(String),
    ip_address  String,
    details     String,
    created_at  DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (business_id, created_at)
TTL toDateTime(created_at) + INTERVAL %d DAY`

	insertAuditEvent = `INSERT INTO audit_events
    (id, business_id, admin_id, staff_id, action, severity, ip_address, details, created_at)`

	selectSeveritySummary = `
SELECT action, severity, count() AS events
FROM audit_events
WHERE business_id = ? AND created_at >= ?
GROUP BY action, severity
ORDER BY events DESC`
)

type analyticsStore interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	QueryRows(ctx context.Context, query string, args ...interface{}) (driver.Rows, error)
	BatchInsert(ctx context.Context, query string, rows [][]interface{}) error
}

type SeverityCount struct {
	Action   string `json:"action"`
	Severity string `json:"severity"`
	Events   uint64 `json:"events"`
}

type ClickHouseSink struct {
	store analyticsStore
}

func NewClickHouseSink(store analyticsStore) *ClickHouseSink {
	return &ClickHouseSink{store: store}
}

// EnsureSchema creates the analytics table with a TTL matching audit retention.
func (s *ClickHouseSink) EnsureSchema(ctx context.Context, retention time.Duration) error {
	days := max(int(retention.Hours()/24), 1)
	if err := s.store.Exec(ctx, fmt.Sprintf(createAuditEventsTable, days)); err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, entry *models.AuditLog) error {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("invalid audit entry id %q: %w", entry.ID, err)
	}
	row := []interface{}{
		id,
		entry.BusinessID,
		deref(entry.AdminID),
		deref(entry.StaffID),
		entry.Action,
		string(entry.Severity),
		deref(entry.IPAddress),
		string(entry.Details),
		entry.CreatedAt,
	}
	return s.store.BatchInsert(ctx, insertAuditEvent, [][]interface{}{row})
}

// SeveritySummary counts events per action and severity since the given time.
func (s *ClickHouseSink) SeveritySummary(ctx context.Context, businessID string, since time.Time) ([]SeverityCount, error) {
	rows, err := s.store.QueryRows(ctx, selectSeveritySummary, businessID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query severity summary: %w", err)
	}
	defer rows.Close()

	var summary []SeverityCount
	for rows.Next() {
		var c SeverityCount
		if err := rows.Scan(&c.Action, &c.Severity, &c.Events); err != nil {
			return nil, fmt.Errorf("failed to scan severity summary: %w", err)
		}
		summary = append(summary, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read severity summary: %w", err)
	}
	return summary, nil
}
