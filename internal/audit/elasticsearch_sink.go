package audit

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"hybrid-auth-service/internal/models"
)

const auditIndexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "business_id": {"type": "keyword"},
      "admin_id":    {"type": "keyword"},
      "staff_id":    {"type": "keyword"},
      "action":      {"type": "keyword"},
      "severity":    {"type": "keyword"},
      "ip_address":  {"type": "keyword"},
      "details":     {"type": "flattened"},
      "created_at":  {"type": "date"}
    }
  }
}`

const maxSearchHits = 100

type searchIndex interface {
	EnsureIndex(ctx context.Context, index, mapping string) error
	IndexDocument(ctx context.Context, index, id string, document interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}) (*esapi.Response, error)
	ParseResponse(res *esapi.Response, target interface{}) error
}

type ElasticsearchSink struct {
	client searchIndex
	index  string
}

func NewElasticsearchSink(client searchIndex, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) EnsureIndex(ctx context.Context) error {
	return s.client.EnsureIndex(ctx, s.index, auditIndexMapping)
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Write(ctx context.Context, entry *models.AuditLog) error {
	return s.client.IndexDocument(ctx, s.index, entry.ID, entry)
}

type SearchQuery struct {
	Text     string
	Action   string
	Severity string
	StaffID  string
	Limit    int
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.AuditLog `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a business-scoped query; Text matches action, staff, admin and
// ip values, the other fields are exact filters.
func (s *ElasticsearchSink) Search(ctx context.Context, businessID string, q SearchQuery) ([]*models.AuditLog, error) {
	filters := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"business_id": businessID}},
	}
	if q.Action != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"action": q.Action}})
	}
	if q.Severity != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"severity": q.Severity}})
	}
	if q.StaffID != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"staff_id": q.StaffID}})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if q.Text != "" {
		boolQuery["must"] = map[string]interface{}{
			"query_string": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"action", "staff_id", "admin_id", "ip_address"},
			},
		}
	}

	size := q.Limit
	if size <= 0 || size > maxSearchHits {
		size = maxSearchHits
	}

	query := map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}}},
	}

	res, err := s.client.Search(ctx, s.index, query)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := s.client.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse audit search: %w", err)
	}

	results := make([]*models.AuditLog, 0, len(parsed.Hits.Hits))
	for i := range parsed.Hits.Hits {
		results = append(results, &parsed.Hits.Hits[i].Source)
	}
	return results, nil
}
