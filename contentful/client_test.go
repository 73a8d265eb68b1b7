package contentful

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ridoystarlord/discontented/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDelivery(t *testing.T, h http.HandlerFunc) (*Delivery, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	d := NewDelivery(Options{SpaceID: "space1", DeliveryToken: "cda-token", DeliveryURL: srv.URL})
	d.Client().ExtraDelay = 0
	return d, srv
}

func newManagement(t *testing.T, h http.HandlerFunc) *Management {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewManagement(Options{SpaceID: "space1", EnvironmentID: "staging", ManagementToken: "cma-token", ManagementURL: srv.URL})
}

func TestDeliveryEntry(t *testing.T) {
	d, _ := newDelivery(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spaces/space1/environments/master/entries/e1", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("locale"))
		assert.Equal(t, "Bearer cda-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"sys":{"id":"e1","publishedVersion":3},"fields":{"title":{"en-US":"Hello"}}}`)
	})

	entry, err := d.Entry(t.Context(), "", "e1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "e1", entry.Sys.ID)
	assert.True(t, entry.IsPublished())
	assert.JSONEq(t, `"Hello"`, string(entry.Fields["title"]["en-US"]))
}

func TestDeliveryNotFoundIsNil(t *testing.T) {
	d, _ := newDelivery(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	entry, err := d.Entry(t.Context(), "space1", "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	asset, err := d.Asset(t.Context(), "space1", "missing")
	require.NoError(t, err)
	assert.Nil(t, asset)
}

func TestRetriesRateLimitedRequests(t *testing.T) {
	var hits atomic.Int32
	d, _ := newDelivery(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.Header().Set(rateLimitHeader, "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"sys":{"id":"e1"}}`)
	})

	entry, err := d.Entry(t.Context(), "", "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", entry.Sys.ID)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRateLimitBudgetExhausted(t *testing.T) {
	var hits atomic.Int32
	d, _ := newDelivery(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set(rateLimitHeader, "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	d.Client().MaxRetries = 2

	_, err := d.Entry(t.Context(), "", "e1")
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, 2, rl.Retries)
	assert.Equal(t, int32(3), hits.Load())
}

func TestServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	d, _ := newDelivery(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := d.Entry(t.Context(), "", "e1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Contains(t, se.Body, "boom")
	assert.Equal(t, int32(1), hits.Load())
}

func TestRateLimitDelay(t *testing.T) {
	c := newClient("test", "http://localhost", "", 1, 0, nil)
	c.jitter = func(d time.Duration) time.Duration { return d / 10 }

	assert.Equal(t, 2200*time.Millisecond, c.rateLimitDelay("2"))
	assert.Equal(t, 1100*time.Millisecond, c.rateLimitDelay("garbage"))

	c.ExtraDelay = time.Second
	assert.Equal(t, time.Second, c.rateLimitDelay("0"))
}

func TestCollectPaginates(t *testing.T) {
	const total = 1500
	var skips []string
	d, _ := newDelivery(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		skips = append(skips, q.Get("skip"))
		assert.Equal(t, "1000", q.Get("limit"))

		skip, _ := strconv.Atoi(q.Get("skip"))
		n := min(pageLimit, total-skip)
		page := Collection[schema.Entry]{Total: total, Skip: skip, Limit: pageLimit}
		for i := 0; i < n; i++ {
			page.Items = append(page.Items, schema.Entry{Sys: schema.EntrySys{ID: strconv.Itoa(skip + i)}})
		}
		assert.NoError(t, json.NewEncoder(w).Encode(page))
	})

	entries, err := d.Entries(t.Context())
	require.NoError(t, err)
	assert.Len(t, entries, total)
	assert.Equal(t, []string{"0", "1000"}, skips)
	assert.Equal(t, "1499", entries[total-1].Sys.ID)
}

func TestManagementUpdateEntry(t *testing.T) {
	m := newManagement(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/spaces/space1/environments/staging/entries/e1", r.URL.Path)
		assert.Equal(t, "7", r.Header.Get(versionHeader))
		assert.Equal(t, "blogPost", r.Header.Get("X-Contentful-Content-Type"))
		assert.Equal(t, managementMIME, r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"fields":{"title":{"en-US":"Updated"}}}`, string(body))
		fmt.Fprint(w, `{"sys":{"id":"e1","version":8}}`)
	})

	entry := schema.Entry{
		Sys: schema.EntrySys{ID: "e1", Version: 7, ContentType: schema.NewLink("ContentType", "blogPost")},
		Fields: map[string]schema.LocalizedValue{
			"title": {"en-US": json.RawMessage(`"Updated"`)},
		},
	}
	updated, err := m.UpdateEntry(t.Context(), entry)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Sys.Version)
}

func TestManagementEntryStateTransitions(t *testing.T) {
	type call struct{ method, path, version string }
	var calls []call
	m := newManagement(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get(versionHeader)})
		w.WriteHeader(http.StatusOK)
	})
	ctx := t.Context()

	require.NoError(t, m.PublishEntry(ctx, "e1", 1))
	require.NoError(t, m.UnpublishEntry(ctx, "e1", 2))
	require.NoError(t, m.ArchiveEntry(ctx, "e1", 3))
	require.NoError(t, m.UnarchiveEntry(ctx, "e1", 4))
	require.NoError(t, m.DeleteEntry(ctx, "e1", 5))

	base := "/spaces/space1/environments/staging/entries/e1"
	assert.Equal(t, []call{
		{http.MethodPut, base + "/published", "1"},
		{http.MethodDelete, base + "/published", "2"},
		{http.MethodPut, base + "/archived", "3"},
		{http.MethodDelete, base + "/archived", "4"},
		{http.MethodDelete, base, "5"},
	}, calls)
}

func TestManagementNotFoundIsError(t *testing.T) {
	m := newManagement(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := m.Entry(t.Context(), "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
