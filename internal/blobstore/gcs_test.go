package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const (
	gcsFirstPage = `{
  "kind": "storage#objects",
  "nextPageToken": "page-2",
  "items": [
    {"kind": "storage#object", "name": "uploads/a.pdf", "bucket": "media", "size": "3", "timeCreated": "2026-03-01T12:00:00Z"},
    {"kind": "storage#object", "name": "uploads/b.pdf", "bucket": "media", "size": "5", "timeCreated": "2026-03-01T12:00:00Z"}
  ]
}`
	gcsSecondPage = `{
  "kind": "storage#objects",
  "items": [
    {"kind": "storage#object", "name": "uploads/c.pdf", "bucket": "media", "size": "7", "timeCreated": "2026-03-02T12:00:00Z"}
  ]
}`
)

type gcsListing struct {
	firstPage  atomic.Int32
	secondPage atomic.Int32
	prefix     atomic.Value
}

func newGCSTestStore(t *testing.T, handler http.HandlerFunc) *GCSStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewGCSStore(client, Options{Bucket: "media", Prefix: "uploads/"})
}

func (l *gcsListing) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/b/media/o") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		l.prefix.Store(r.URL.Query().Get("prefix"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("pageToken") {
		case "":
			l.firstPage.Add(1)
			_, _ = io.WriteString(w, gcsFirstPage)
		case "page-2":
			l.secondPage.Add(1)
			_, _ = io.WriteString(w, gcsSecondPage)
		default:
			http.Error(w, `{"error":{"code":400,"message":"bad token"}}`, http.StatusBadRequest)
		}
	}
}

func TestGCSStoreListFollowsPageTokens(t *testing.T) {
	listing := &gcsListing{}
	store := newGCSTestStore(t, listing.handler(t))

	var got []Object
	err := store.List(context.Background(), func(o Object) bool {
		got = append(got, o)
		return true
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "uploads/a.pdf", got[0].Path)
	assert.Equal(t, "uploads/c.pdf", got[2].Path)
	assert.EqualValues(t, 7, got[2].Size)
	assert.Equal(t, 2026, got[2].UploadedAt.Year())
	assert.EqualValues(t, 1, listing.firstPage.Load())
	assert.EqualValues(t, 1, listing.secondPage.Load())
	assert.Equal(t, "uploads/", listing.prefix.Load())
}

func TestGCSStoreListStopsEarly(t *testing.T) {
	listing := &gcsListing{}
	store := newGCSTestStore(t, listing.handler(t))

	visited := 0
	err := store.List(context.Background(), func(o Object) bool {
		visited++
		return false
	})
	require.NoError(t, err)

	assert.Equal(t, 1, visited)
	assert.EqualValues(t, 1, listing.firstPage.Load())
	assert.Zero(t, listing.secondPage.Load(), "a stopped walk must not fetch further pages")
}

func TestGCSStoreListError(t *testing.T) {
	store := newGCSTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"access denied"}}`)
	})

	visited := 0
	err := store.List(context.Background(), func(Object) bool {
		visited++
		return true
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `list objects in "media"`)
	assert.Zero(t, visited)
}
