package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/listkeeper/internal/backend"
	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

type fakeSyncer struct {
	pending bool
	status  backend.SyncStatus
}

func (f *fakeSyncer) Trigger() bool {
	if f.pending {
		return false
	}
	f.pending = true
	return true
}

func (f *fakeSyncer) Status() backend.SyncStatus { return f.status }

func newTestServer(t *testing.T, syncer SyncController) (*httptest.Server, *storage.SQLiteStore) {
	t.Helper()
	store, db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "lists.db"), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	_, err = store.BulkInsert(context.Background(), []*storage.ListEntry{
		{ListName: "blocked", Pattern: "google.com", PatternType: pattern.Domain, Source: storage.SourceBackend},
		{ListName: "blocked", Pattern: "example.com/maps", PatternType: pattern.HostPathPrefix, Source: storage.SourceUser},
		{ListName: "allowed", Pattern: "docs.example.org", PatternType: pattern.Host, Source: storage.SourceUser},
	})
	require.NoError(t, err)

	d := Deps{Store: store, Syncer: syncer, StartTime: time.Now(), Version: "test"}
	srv := httptest.NewServer(NewRouter(d, time.Second))
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, rawURL string, out any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	synced := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, _ := newTestServer(t, &fakeSyncer{status: backend.SyncStatus{LastSuccess: synced}})

	var body map[string]any
	status := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "2025-01-01T00:00:00Z", body["last_sync"])
}

func TestLists(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body struct {
		Lists []string `json:"lists"`
	}
	status := getJSON(t, srv.URL+"/lists", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"allowed", "blocked"}, body.Lists)
}

func TestEntries(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body struct {
		ListName string               `json:"listName"`
		Entries  []*storage.ListEntry `json:"entries"`
	}
	status := getJSON(t, srv.URL+"/lists/blocked/entries", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "blocked", body.ListName)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, "google.com", body.Entries[0].Pattern)
	assert.Equal(t, pattern.Domain, body.Entries[0].PatternType)

	status = getJSON(t, srv.URL+"/lists/blocked/entries?source=user", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, storage.SourceUser, body.Entries[0].Source)

	status = getJSON(t, srv.URL+"/lists/missing/entries", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Entries)
}

func TestEntries_BadSource(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body map[string]any
	status := getJSON(t, srv.URL+"/lists/blocked/entries?source=robot", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "unknown source")
}

func TestMatch(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		list    string
		url     string
		matched bool
	}{
		{"blocked", "https://mail.google.com/inbox", true},
		{"blocked", "https://example.com/maps/dir", true},
		{"blocked", "https://example.com/map", false},
		{"allowed", "https://www.docs.example.org/x", true},
		{"allowed", "not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			var body struct {
				Matched bool               `json:"matched"`
				Entry   *storage.ListEntry `json:"entry"`
			}
			status := getJSON(t, srv.URL+"/lists/"+tt.list+"/match?url="+url.QueryEscape(tt.url), &body)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.matched, body.Matched)
			assert.Equal(t, tt.matched, body.Entry != nil)
		})
	}
}

func TestMatch_MissingURL(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	var body map[string]any
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/lists/blocked/match", &body))
}

func TestSync(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSyncer{})

	post := func() int {
		resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusAccepted, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestSync_NotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
