package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
	"hybrid-auth-service/internal/repository/memory"
)

type recordingSink struct {
	mu      sync.Mutex
	name    string
	entries []*models.AuditLog
	err     error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

type failingAuditRepo struct {
	repository.AuditLogRepository
}

func (failingAuditRepo) Append(context.Context, *models.AuditLog) error {
	return errors.New("database unavailable")
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestPINFailureSeverity(t *testing.T) {
	tests := []struct {
		attempts int
		want     models.Severity
	}{
		{1, models.SeverityMedium},
		{4, models.SeverityMedium},
		{5, models.SeverityHigh},
		{9, models.SeverityHigh},
		{10, models.SeverityCritical},
		{12, models.SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PINFailureSeverity(tt.attempts, 5), "attempts=%d", tt.attempts)
	}
	assert.Equal(t, models.SeverityMedium, PINFailureSeverity(3, 0))
}

func TestAdminPINFailureSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityHigh, AdminPINFailureSeverity(1, 5))
	assert.Equal(t, models.SeverityHigh, AdminPINFailureSeverity(4, 5))
	assert.Equal(t, models.SeverityCritical, AdminPINFailureSeverity(5, 5))
	assert.Equal(t, models.SeverityHigh, AdminPINFailureSeverity(7, 0))
}

func TestRecorder_RecordPersistsAndFansOut(t *testing.T) {
	store := memory.NewStore()
	kafka := &recordingSink{name: "kafka"}
	search := &recordingSink{name: "elasticsearch"}
	rec := NewRecorder(store.AuditLogs, zap.NewNop(), WithSinks(kafka, search), WithClock(fixedClock()))

	rec.Record(context.Background(), Event{
		BusinessID: "biz-1",
		StaffID:    "staff-1",
		Action:     models.AuditActionStaffPINFailed,
		Severity:   models.SeverityMedium,
		IPAddress:  "10.0.0.1",
		Details:    map[string]interface{}{"attempts": 1},
	})

	logs, err := rec.List(context.Background(), "biz-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, models.AuditActionStaffPINFailed, entry.Action)
	assert.Nil(t, entry.AdminID)
	require.NotNil(t, entry.StaffID)
	assert.Equal(t, "staff-1", *entry.StaffID)
	assert.JSONEq(t, `{"attempts":1}`, string(entry.Details))

	assert.Len(t, kafka.entries, 1)
	assert.Len(t, search.entries, 1)
	assert.Equal(t, entry.ID, kafka.entries[0].ID)
}

func TestRecorder_DefaultsSeverityToLow(t *testing.T) {
	store := memory.NewStore()
	rec := NewRecorder(store.AuditLogs, nil)

	rec.Record(context.Background(), Event{BusinessID: "biz-1", Action: models.AuditActionShiftStarted})

	logs, err := rec.List(context.Background(), "biz-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SeverityLow, logs[0].Severity)
}

func TestRecorder_SinkFailureIsSwallowed(t *testing.T) {
	store := memory.NewStore()
	broken := &recordingSink{name: "kafka", err: errors.New("broker down")}
	healthy := &recordingSink{name: "scylla"}
	rec := NewRecorder(store.AuditLogs, zap.NewNop(), WithSinks(broken, healthy))

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Event{BusinessID: "biz-1", Action: models.AuditActionStaffLockedOut, Severity: models.SeverityHigh})
	})

	logs, err := rec.List(context.Background(), "biz-1", repository.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Len(t, healthy.entries, 1)
}

func TestRecorder_RepositoryFailureSkipsSinks(t *testing.T) {
	sink := &recordingSink{name: "kafka"}
	rec := NewRecorder(failingAuditRepo{}, zap.NewNop(), WithSinks(sink))

	rec.Record(context.Background(), Event{BusinessID: "biz-1", Action: models.AuditActionShiftEnded})

	assert.Empty(t, sink.entries)
}

func TestRecorder_SurvivesCancelledContext(t *testing.T) {
	store := memory.NewStore()
	rec := NewRecorder(store.AuditLogs, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, Event{BusinessID: "biz-1", Action: models.AuditActionStaffSignedOut})

	logs, err := rec.List(context.Background(), "biz-1", repository.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRecorder_PurgeOlderThan(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-100 * 24 * time.Hour)
	rec := NewRecorder(store.AuditLogs, zap.NewNop(), WithClock(func() time.Time { return clock }))

	rec.Record(context.Background(), Event{BusinessID: "biz-1", Action: models.AuditActionShiftStarted})
	clock = now
	rec.Record(context.Background(), Event{BusinessID: "biz-1", Action: models.AuditActionShiftEnded})

	deleted, err := rec.PurgeOlderThan(context.Background(), now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	logs, err := rec.List(context.Background(), "biz-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionShiftEnded, logs[0].Action)
}

type fakeProducer struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

func (p *fakeProducer) ProduceMessage(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	p.topic, p.key, p.value, p.headers = topic, key, value, headers
	return nil
}

func TestKafkaSink_Write(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewKafkaSink(producer, "security-events")

	entry := &models.AuditLog{ID: "e1", BusinessID: "biz-1", Action: models.AuditActionStaffLockedOut, Severity: models.SeverityHigh}
	require.NoError(t, sink.Write(context.Background(), entry))

	assert.Equal(t, "security-events", producer.topic)
	assert.Equal(t, "biz-1", string(producer.key))
	assert.Equal(t, "high", producer.headers["severity"])

	var decoded models.AuditLog
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, "e1", decoded.ID)
}

type fakeTimeline struct {
	events []*models.SecurityEvent
}

func (f *fakeTimeline) Insert(_ context.Context, event *models.SecurityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTimeline) ListByBusiness(context.Context, string, time.Time, time.Time, int) ([]*models.SecurityEvent, error) {
	return f.events, nil
}

func TestScyllaSink_WritesOnlySecurityEvents(t *testing.T) {
	timeline := &fakeTimeline{}
	sink := NewScyllaSink(timeline)
	staffID := "staff-1"

	require.NoError(t, sink.Write(context.Background(), &models.AuditLog{
		ID: "e1", BusinessID: "biz-1", Action: models.AuditActionStaffAuthenticated, Severity: models.SeverityLow,
	}))
	require.NoError(t, sink.Write(context.Background(), &models.AuditLog{
		ID: "e2", BusinessID: "biz-1", StaffID: &staffID, Action: models.AuditActionStaffLockedOut, Severity: models.SeverityHigh,
	}))

	require.Len(t, timeline.events, 1)
	assert.Equal(t, "e2", timeline.events[0].EventID)
	assert.Equal(t, "staff-1", timeline.events[0].StaffID)
}

type fakeSearchIndex struct {
	lastQuery map[string]interface{}
	body      string
}

func (f *fakeSearchIndex) EnsureIndex(context.Context, string, string) error { return nil }

func (f *fakeSearchIndex) IndexDocument(context.Context, string, string, interface{}) error {
	return nil
}

func (f *fakeSearchIndex) Search(_ context.Context, _ string, query map[string]interface{}) (*esapi.Response, error) {
	f.lastQuery = query
	return &esapi.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func (f *fakeSearchIndex) ParseResponse(res *esapi.Response, target interface{}) error {
	defer res.Body.Close()
	return json.NewDecoder(res.Body).Decode(target)
}

func TestElasticsearchSink_Search(t *testing.T) {
	index := &fakeSearchIndex{body: `{"hits":{"hits":[{"_source":{"id":"e1","business_id":"biz-1","action":"staff_locked_out","severity":"high"}}]}}`}
	sink := NewElasticsearchSink(index, "audit-events")

	results, err := sink.Search(context.Background(), "biz-1", SearchQuery{Text: "locked", Severity: "high", Limit: 1000})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "e1", results[0].ID)
	assert.Equal(t, models.SeverityHigh, results[0].Severity)

	assert.Equal(t, maxSearchHits, index.lastQuery["size"])
	boolQuery := index.lastQuery["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolQuery["filter"], 2)
	assert.Contains(t, boolQuery, "must")
}
