package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fuels-pipeline/internal/fastfuels"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDownloadWritesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 3000) // spans several chunks
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("api-key"))
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out", "treelist.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, []byte("stale content that is longer than nothing"), 0o644))

	n, err := NewFetcher(srv.Client(), zaptest.NewLogger(t)).Download(context.Background(), srv.URL+"/signed?sig=abc", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired signature", http.StatusForbidden)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "topo.geotiff")
	_, err := NewFetcher(nil, nil).Download(context.Background(), srv.URL, dest)

	var se *fastfuels.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, se.Body, "expired signature")
	assert.NoFileExists(t, dest)
	assert.Equal(t, KindHTTPStatus, classify("DownloadTopographyImage", err).Kind)
}

func TestDownloadTruncatedBodyRemovesPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.Write([]byte("partial"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "naip.png")
	_, err := NewFetcher(srv.Client(), nil).Download(context.Background(), srv.URL, dest)

	require.Error(t, err)
	assert.Equal(t, KindTransport, classify("FetchBackgroundImagery", err).Kind)
	assert.NoFileExists(t, dest)
}

func TestDownloadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(nil, nil).Download(context.Background(), url, filepath.Join(t.TempDir(), "x"))

	var te *fastfuels.TransportError
	assert.ErrorAs(t, err, &te)
}
