package minoteapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleroq/minote-sync/internal/infra/transport"
)

func newAPI(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := transport.DefaultConfig()
	cfg.Cookie = "serviceToken=x"
	cfg.MaxAttempts = 2
	cfg.BackoffBase = time.Millisecond
	cfg.Jitter = 0
	opts.BaseURL = srv.URL
	return New(transport.New(cfg, nil), opts, nil)
}

func TestListFollowsSyncTagAndMergesFolders(t *testing.T) {
	var mu sync.Mutex
	var tags []string
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/note/full/page/", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.URL.Query().Get("ts"))
		tag := r.URL.Query().Get("syncTag")
		mu.Lock()
		tags = append(tags, tag)
		mu.Unlock()
		if tag == "" {
			_, _ = io.WriteString(w, `{"data":{"entries":[{"id":1234567890123456789,"folderId":0,"snippet":"first","extraInfo":"{\"title\":\"One\"}","createDate":1700000000000,"modifyDate":1700000100000}],"folders":[{"id":"5","subject":"Work"}],"syncTag":"t1"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"entries":[{"id":"42","folderId":"5","snippet":"second"}],"folders":[],"syncTag":""}}`)
	}, Options{})

	entries, folders, err := api.List(context.Background())
	require.NoError(t, err)
	mu.Lock()
	require.Equal(t, []string{"", "t1"}, tags)
	mu.Unlock()
	require.Len(t, entries, 2)

	require.Equal(t, "1234567890123456789", entries[0].ID)
	require.Equal(t, "0", entries[0].FolderID)
	require.Equal(t, "One", entries[0].ExtraInfo().Title)
	require.Equal(t, int64(1700000100000), entries[0].ModifiedAtMs)
	require.Equal(t, "42", entries[1].ID)

	require.Equal(t, "未分类", folders.Name("0"))
	require.Equal(t, "Work", folders.Name("5"))
}

func TestListUnauthorizedDiscardsEntries(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, Options{})

	entries, folders, err := api.List(context.Background())
	require.ErrorIs(t, err, transport.ErrUnauthorized)
	require.Nil(t, entries)
	require.Nil(t, folders)
}

func TestListReturnsPartialResultOnFailure(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("syncTag") == "" {
			_, _ = io.WriteString(w, `{"data":{"entries":[{"id":"1"}],"syncTag":"next"}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, Options{})

	entries, _, err := api.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestListStopsOnUndecodablePage(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>login</html>`)
	}, Options{})

	entries, folders, err := api.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, "未分类", folders.Name("0"))
}

func TestListHonoursPageCeiling(t *testing.T) {
	var hits atomic.Int32
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"data":{"entries":[{"id":"1"}],"syncTag":"forever"}}`)
	}, Options{MaxPages: 3})

	entries, _, err := api.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int32(3), hits.Load())
}

func TestDetailDecodesEntry(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/note/note/77/", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":{"entry":{"content":"<text>hi</text>","setting":{"data":[{"fileId":"img1","mimeType":"image/png"}]},"createDate":1,"modifyDate":2}}}`)
	}, Options{})

	detail, ok, err := api.Detail(context.Background(), "77")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<text>hi</text>", detail.Content)
	require.Equal(t, int64(2), detail.ModifiedAtMs)
	require.Len(t, detail.Setting().Data, 1)
	require.Equal(t, "img1", detail.Setting().Data[0].FileID)
}

func TestDetailAcceptsStringSetting(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"entry":{"content":"x","setting":"{\"data\":[{\"fileId\":\"a1\"}]}"}}}`)
	}, Options{})

	detail, ok, err := api.Detail(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a1", detail.Setting().Data[0].FileID)
}

func TestDetailMissingIsAbsent(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, Options{})

	_, ok, err := api.Detail(context.Background(), "1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDetailUnauthorized(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, Options{})

	_, ok, err := api.Detail(context.Background(), "1")
	require.ErrorIs(t, err, transport.ErrUnauthorized)
	require.False(t, ok)
}

func TestOpenResourceBuildsQuery(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/full", r.URL.Path)
		assert.Equal(t, "note_voice", r.URL.Query().Get("type"))
		assert.Equal(t, "abc.1", r.URL.Query().Get("fileid"))
		_, _ = io.WriteString(w, "data")
	}, Options{})

	resp, err := api.OpenResource(context.Background(), "note_voice", "abc.1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
