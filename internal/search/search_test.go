package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "-")
	os.Exit(m.Run())
}

// fakeES answers the handful of endpoints the client uses
type fakeES struct {
	mu          sync.Mutex
	indexExists bool
	indexed     map[string]ThreadDoc
	lastQuery   map[string]interface{}
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`)
	case r.URL.Path == "/threads" && r.Method == http.MethodHead:
		if !f.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.URL.Path == "/threads" && r.Method == http.MethodPut:
		f.indexExists = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasPrefix(r.URL.Path, "/threads/_doc/"):
		id := strings.TrimPrefix(r.URL.Path, "/threads/_doc/")
		if r.Method == http.MethodDelete {
			delete(f.indexed, id)
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		var doc ThreadDoc
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.indexed[id] = doc
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case r.URL.Path == "/threads/_search":
		_ = json.NewDecoder(r.Body).Decode(&f.lastQuery)
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[{"_id":"t2"},{"_id":"t1"}]}}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"unexpected request"}`)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeES) {
	fake := &fakeES{indexed: make(map[string]ThreadDoc)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client, fake
}

func TestEnsureIndex(t *testing.T) {
	client, _ := newFakeClient(t)
	ctx := context.Background()

	created, err := client.EnsureIndex(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = client.EnsureIndex(ctx)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestIndexAndDeleteThread(t *testing.T) {
	client, fake := newFakeClient(t)
	ctx := context.Background()

	thread := &models.Thread{
		ID:       "t1",
		AuthorID: "u1",
		Author:   &models.User{ID: "u1", Username: "alice"},
		Title:    "Hello world",
		Body:     "first thread",
		Status:   models.ThreadStatusOpen,
	}
	require.NoError(t, client.IndexThread(ctx, thread))

	doc := fake.indexed["t1"]
	assert.Equal(t, "Hello world", doc.Title)
	assert.Equal(t, "alice", doc.Username)
	assert.Equal(t, []string{}, doc.Tags)

	require.NoError(t, client.DeleteThread(ctx, "t1"))
	assert.NotContains(t, fake.indexed, "t1")
}

func TestSearchThreads(t *testing.T) {
	client, fake := newFakeClient(t)

	result, err := client.SearchThreads(context.Background(), ThreadQuery{Query: "golang", Tag: "go", Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, result.IDs)
	assert.Equal(t, int64(2), result.Total)

	assert.EqualValues(t, 5, fake.lastQuery["from"])
	assert.EqualValues(t, 10, fake.lastQuery["size"])
	boolQuery := fake.lastQuery["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Contains(t, boolQuery, "must")
	assert.Contains(t, boolQuery, "filter")
}

type recordingIndexer struct {
	ids []string
}

func (r *recordingIndexer) IndexThread(_ context.Context, t *models.Thread) error {
	r.ids = append(r.ids, t.ID)
	return nil
}

func (r *recordingIndexer) SearchThreads(context.Context, ThreadQuery) (*ThreadResult, error) {
	return &ThreadResult{}, nil
}

func TestReindex(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "alice", models.RoleMember)
	a := testutil.CreateThread(t, db, author, "first")
	b := testutil.CreateThread(t, db, author, "second")

	idx := &recordingIndexer{}
	n, err := Reindex(context.Background(), db, idx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, idx.ids)
}
