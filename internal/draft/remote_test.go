package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAPI mimics the movedocs drafts endpoints closely enough to pin the
// client's wire format.
type stubAPI struct {
	mu     sync.Mutex
	drafts map[string]json.RawMessage
	auth   []string
}

func newStubServer(t *testing.T) (*stubAPI, *httptest.Server) {
	t.Helper()
	api := &stubAPI{drafts: map[string]json.RawMessage{}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			api.mu.Lock()
			api.auth = append(api.auth, req.Header.Get("Authorization"))
			api.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/drafts/{formType}/exists", func(w http.ResponseWriter, req *http.Request) {
		api.mu.Lock()
		_, ok := api.drafts[chi.URLParam(req, "formType")]
		api.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"exists": ok})
	})
	r.Get("/drafts/{formType}", func(w http.ResponseWriter, req *http.Request) {
		api.mu.Lock()
		data, ok := api.drafts[chi.URLParam(req, "formType")]
		api.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":          data,
			"last_modified": time.Now().UTC(),
		})
	})
	r.Put("/drafts/{formType}", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Data) == 0 {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		api.mu.Lock()
		api.drafts[chi.URLParam(req, "formType")] = body.Data
		api.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Delete("/drafts/{formType}", func(w http.ResponseWriter, req *http.Request) {
		api.mu.Lock()
		delete(api.drafts, chi.URLParam(req, "formType"))
		api.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

func TestClientRoundTrip(t *testing.T) {
	api, srv := newStubServer(t)
	c := NewClient(srv.URL, func() string { return "tok-123" }, srv.Client())
	ctx := context.Background()

	ok, err := c.Exists(ctx, "quotation-create")
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := c.Get(ctx, "quotation-create")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, c.Put(ctx, "quotation-create", json.RawMessage(`{"step":2}`)))

	ok, err = c.Exists(ctx, "quotation-create")
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err = c.Get(ctx, "quotation-create")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"step":2}`, string(snap.Data))
	assert.False(t, snap.LastModified.IsZero())

	require.NoError(t, c.Delete(ctx, "quotation-create"))
	ok, err = c.Exists(ctx, "quotation-create")
	require.NoError(t, err)
	assert.False(t, ok)

	api.mu.Lock()
	defer api.mu.Unlock()
	for _, h := range api.auth {
		assert.Equal(t, "Bearer tok-123", h)
	}
}

func TestClientDeleteMissingIsIdempotent(t *testing.T) {
	_, srv := newStubServer(t)
	c := NewClient(srv.URL, nil, srv.Client())

	// stub returns 204 regardless; exercise the 404 path directly too
	require.NoError(t, c.Delete(context.Background(), "never-saved"))
	assert.True(t, isNotFound(&statusError{code: http.StatusNotFound}))
}

func TestClientSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "db down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, nil, srv.Client())
	err := c.Put(context.Background(), "quotation-create", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "db down")
}
