package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "firmpulse/internal/errors"
)

func TestFetch_DownloadsRemoteSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("country,year,gini\nDEU,2020,32.1\n"))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	f := NewFetcher(cacheDir, 5*time.Second, 10, 0, nil)

	path, err := f.Fetch(context.Background(), Source{Name: "gini.csv", Location: server.URL})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "gini.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEU,2020")
}

func TestFetch_CopiesLocalSource(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "firms.csv")
	require.NoError(t, os.WriteFile(srcPath, []byte("firm_id,year\nF1,2020\n"), 0644))

	cacheDir := t.TempDir()
	f := NewFetcher(cacheDir, time.Second, 10, 0, nil)

	path, err := f.Fetch(context.Background(), Source{Name: "firms.csv", Location: srcPath})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "F1,2020")
}

func TestFetch_ReusesFreshCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("payload\n"))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	f := NewFetcher(cacheDir, time.Second, 10, time.Hour, nil)

	src := Source{Name: "weo.csv", Location: server.URL}
	_, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), time.Second, 10, 0, nil)

	_, err := f.Fetch(context.Background(), Source{Name: "x.csv", Location: server.URL})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
}

func TestFetch_EmptyBodyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with empty body
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), time.Second, 10, 0, nil)

	_, err := f.Fetch(context.Background(), Source{Name: "x.csv", Location: server.URL})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	// No truncated file left behind
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "x.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data for " + r.URL.Path + "\n"))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	f := NewFetcher(cacheDir, time.Second, 100, 0, nil)

	sources := []Source{
		{Name: "firms.csv", Location: server.URL + "/firms"},
		{Name: "weo.csv", Location: server.URL + "/weo"},
		{Name: "gini.csv", Location: server.URL + "/gini"},
	}

	paths, err := f.FetchAll(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for _, src := range sources {
		data, err := os.ReadFile(paths[src.Name])
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestFetchAll_OneFailureAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok\n"))
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), time.Second, 100, 0, nil)

	_, err := f.FetchAll(context.Background(), []Source{
		{Name: "good.csv", Location: server.URL + "/good"},
		{Name: "bad.csv", Location: server.URL + "/bad"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
}
