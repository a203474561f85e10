package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/bucketing"
	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/util"
)

const (
	insertSecurityEvent = `
INSERT INTO security_events (
    event_bucket, event_date, business_id, event_time, event_id,
    event_type, severity, staff_id, admin_id, ip_address, details
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSecurityEvents = `
SELECT event_bucket, event_date, business_id, event_time, event_id,
       event_type, severity, staff_id, admin_id, ip_address, details
FROM security_events
WHERE event_bucket = ? AND event_date = ? AND business_id = ?
  AND event_time >= ? AND event_time < ?
LIMIT ?`

	// maxTimelineDays bounds how many day partitions one listing walks.
	maxTimelineDays = 31
	insertRetries   = 2
)

type SecurityEventRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.BucketingManager
}

func NewSecurityEventRepository(client *ScyllaClient, bm *bucketing.BucketingManager) *SecurityEventRepository {
	return &SecurityEventRepository{client: client, bucketing: bm}
}

func (r *SecurityEventRepository) Insert(ctx context.Context, event *models.SecurityEvent) error {
	eventID, err := gocql.ParseUUID(event.EventID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", event.EventID, err)
	}

	assignment := r.bucketing.Assign(event.BusinessID, event.EventTime)
	event.EventBucket = assignment.EventBucket
	event.EventDate = assignment.DateBucket

	query := r.client.Query(insertSecurityEvent,
		event.EventBucket, event.EventDate, event.BusinessID, event.EventTime, eventID,
		event.EventType, event.Severity, event.StaffID, event.AdminID, event.IPAddress, event.Details)

	if err := r.client.ExecuteWithRetry(ctx, query, insertRetries); err != nil {
		util.Error("Failed to insert security event",
			zap.String("business_id", event.BusinessID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListByBusiness walks day partitions from until back to since, newest first,
// and stops once limit events are collected.
func (r *SecurityEventRepository) ListByBusiness(ctx context.Context, businessID string, since, until time.Time, limit int) ([]*models.SecurityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if until.IsZero() {
		until = time.Now().UTC()
	}
	if since.IsZero() || until.Sub(since) > maxTimelineDays*24*time.Hour {
		since = until.Add(-maxTimelineDays * 24 * time.Hour)
	}

	bucket := r.bucketing.GetEventBucket(businessID)
	events := make([]*models.SecurityEvent, 0, limit)

	for _, day := range dayPartitions(since, until) {
		remaining := limit - len(events)
		if remaining <= 0 {
			break
		}

		iter := r.client.Query(selectSecurityEvents, bucket, day, businessID, since, until, remaining).
			WithContext(ctx).
			Iter()

		var (
			row     models.SecurityEvent
			eventID gocql.UUID
		)
		for iter.Scan(&row.EventBucket, &row.EventDate, &row.BusinessID, &row.EventTime, &eventID,
			&row.EventType, &row.Severity, &row.StaffID, &row.AdminID, &row.IPAddress, &row.Details) {
			event := row
			event.EventID = eventID.String()
			events = append(events, &event)
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("failed to list security events for %s: %w", day, err)
		}
	}

	return events, nil
}

// dayPartitions returns the UTC dates covering [since, until], newest first.
func dayPartitions(since, until time.Time) []string {
	start := since.UTC().Truncate(24 * time.Hour)
	var days []string
	for d := until.UTC().Truncate(24 * time.Hour); !d.Before(start); d = d.Add(-24 * time.Hour) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
