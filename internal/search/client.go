// Package search indexes threads in Elasticsearch for full-text lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/elastic/go-elasticsearch/v8"
)

// IndexThreads is the default index name
const IndexThreads = "threads"

// ThreadSearcher is what the thread handlers need from a search backend
type ThreadSearcher interface {
	IndexThread(ctx context.Context, thread *models.Thread) error
	SearchThreads(ctx context.Context, params ThreadQuery) (*ThreadResult, error)
}

// ThreadQuery filters a thread search
type ThreadQuery struct {
	Query  string
	Tag    string
	Status string
	Limit  int
	Offset int
}

// ThreadResult holds matching ids in ranking order
type ThreadResult struct {
	IDs   []string
	Total int64
}

// Client wraps the Elasticsearch client
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient connects to url and verifies the cluster answers
func NewClient(url string) (*Client, error) {
	return NewClientWithTransport(url, nil)
}

// NewClientWithTransport is NewClient with a custom HTTP transport
func NewClientWithTransport(url string, transport http.RoundTripper) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: [%s]", res.Status())
	}

	return &Client{es: es, index: IndexThreads}, nil
}

// EnsureIndex creates the threads index with its mapping when missing.
// It reports whether the index was created.
func (c *Client) EnsureIndex(ctx context.Context) (bool, error) {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return false, nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":        map[string]interface{}{"type": "keyword"},
				"author_id": map[string]interface{}{"type": "keyword"},
				"username":  map[string]interface{}{"type": "keyword"},
				"title": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"body": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"tags":             map[string]interface{}{"type": "keyword"},
				"status":           map[string]interface{}{"type": "keyword"},
				"post_count":       map[string]interface{}{"type": "integer"},
				"last_activity_at": map[string]interface{}{"type": "date"},
				"created_at":       map[string]interface{}{"type": "date"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return false, fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, responseError("creating index", res.Status(), res.Body)
	}
	return true, nil
}

// IndexThread upserts the thread document
func (c *Client) IndexThread(ctx context.Context, thread *models.Thread) error {
	body, err := json.Marshal(ThreadToDoc(thread))
	if err != nil {
		return fmt.Errorf("failed to marshal thread document: %w", err)
	}

	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(thread.ID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index thread: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("indexing thread", res.Status(), res.Body)
	}
	return nil
}

// DeleteThread removes a thread document. Missing documents are not an error.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	res, err := c.es.Delete(c.index, threadID, c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("deleting thread", res.Status(), res.Body)
	}
	return nil
}

// SearchThreads runs a relevance query over title (boosted) and body
func (c *Client) SearchThreads(ctx context.Context, params ThreadQuery) (*ThreadResult, error) {
	metrics.Get().SearchQueriesTotal.WithLabelValues("elasticsearch").Inc()

	var filters []map[string]interface{}
	if params.Tag != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"tags": params.Tag},
		})
	}
	if params.Status != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"status": params.Status},
		})
	}

	boolQuery := map[string]interface{}{}
	if params.Query != "" {
		boolQuery["must"] = []map[string]interface{}{{
			"multi_match": map[string]interface{}{
				"query":     params.Query,
				"fields":    []string{"title^3", "body", "tags^2"},
				"fuzziness": "AUTO",
			},
		}}
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"from":  params.Offset,
		"size":  params.Limit,
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"last_activity_at": map[string]interface{}{"order": "desc"}},
		},
		"_source": false,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search threads: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("searching threads", res.Status(), res.Body)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &ThreadResult{Total: parsed.Hits.Total.Value, IDs: make([]string, 0, len(parsed.Hits.Hits))}
	for _, hit := range parsed.Hits.Hits {
		result.IDs = append(result.IDs, hit.ID)
	}
	return result, nil
}

func responseError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error response [%s]", status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}
