package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"fuels-pipeline/internal/fastfuels"

	"go.uber.org/zap"
)

// chunkSize is the copy buffer for artifact downloads.
const chunkSize = 8192

// Fetcher streams signed artifact URLs to local files. Signed URLs carry their
// own authorisation, so no API headers are sent.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, logger: logger}
}

// Download writes the body of a GET on url to dest, truncating any existing
// file, and returns the number of bytes written. On failure the partial file
// is removed. There is no retry.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &fastfuels.TransportError{Method: http.MethodGet, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, chunkSize))
		return 0, fastfuels.NewStatusError(http.MethodGet, &fastfuels.Response{
			StatusCode: resp.StatusCode,
			Body:       body,
			URL:        url,
		})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	// hide ReadFrom so the copy goes through the chunk buffer
	n, copyErr := io.CopyBuffer(struct{ io.Writer }{out}, resp.Body, make([]byte, chunkSize))
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(dest)
		if copyErr != nil {
			var pe *os.PathError
			if errors.As(copyErr, &pe) {
				return n, copyErr
			}
			return n, &fastfuels.TransportError{Method: http.MethodGet, URL: url, Err: copyErr}
		}
		return n, closeErr
	}

	f.logger.Info("downloaded artifact", zap.String("path", dest), zap.Int64("bytes", n))
	return n, nil
}
