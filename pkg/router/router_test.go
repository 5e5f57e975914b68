package router

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func respond(body string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, body) }
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterDispatch(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	r.GET("/api/v1/pipelines", respond("list"))
	r.POST("/api/v1/pipelines", respond("create"))
	r.GET("/api/v1/pipelines/*/stages", respond("stages"))
	r.GET("/api/v1/pipelines/*", respond("detail"))
	r.GET("/api/v1/download/*/*", respond("download"))

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/api/v1/pipelines", 200, "list"},
		{http.MethodPost, "/api/v1/pipelines", 200, "create"},
		{http.MethodGet, "/api/v1/pipelines/abc/stages", 200, "stages"},
		{http.MethodGet, "/api/v1/pipelines/abc", 200, "detail"},
		{http.MethodGet, "/api/v1/download/abc/naip.png", 200, "download"},
		{http.MethodDelete, "/api/v1/pipelines", 405, ""},
		{http.MethodPost, "/api/v1/pipelines/abc", 405, ""},
		{http.MethodGet, "/nowhere", 404, ""},
		{http.MethodGet, "/api/v1/download/abc", 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRouterSpecificWildcardWinsWhenRegisteredFirst(t *testing.T) {
	// repeated to shake out any dependence on map order
	for range 20 {
		r := New(nil)
		r.GET("/api/v1/pipelines/*/logs", respond("logs"))
		r.GET("/api/v1/pipelines/*/errors", respond("errors"))
		r.GET("/api/v1/pipelines/*", respond("detail"))

		assert.Equal(t, "logs", serve(r, http.MethodGet, "/api/v1/pipelines/x/logs").Body.String())
		assert.Equal(t, "errors", serve(r, http.MethodGet, "/api/v1/pipelines/x/errors").Body.String())
	}
}

func TestRouterHandleMountsHandler(t *testing.T) {
	r := New(nil)
	r.Handle("/swagger/*", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, req.URL.Path)
	}))

	rec := serve(r, http.MethodGet, "/swagger/index.html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/swagger/index.html", rec.Body.String())
	assert.Contains(t, r.Routes(), "GET:/swagger/*")
	assert.True(t, r.Paths()["/swagger/*"])
}

func TestMatchWildcardRoute(t *testing.T) {
	assert.True(t, matchWildcardRoute("/a/b/c", "/a/*/c"))
	assert.False(t, matchWildcardRoute("/a/b/d", "/a/*/c"))
	assert.True(t, matchWildcardRoute("/a/b/c/d", "/a/*"))
	assert.False(t, matchWildcardRoute("/b/c", "/a/*"))
	assert.False(t, matchWildcardRoute("/a//c", "/a/*/c"))
}

func TestStartShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	r := New(zaptest.NewLogger(t))
	r.GET("/ping", respond("pong"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx, addr, time.Second) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/ping")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
