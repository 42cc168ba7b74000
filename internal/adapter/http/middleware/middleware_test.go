package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSON(t *testing.T) {
	out := string(redactJSON([]byte(`{"user":"a","Password":"p","nested":[{"signature":"abc"}]}`)))
	assert.NotContains(t, out, `"p"`)
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, `"user":"a"`)

	assert.Equal(t, "not json", string(redactJSON([]byte("not json"))))
}

func TestLoggingKeepsRequestBodyIntact(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&logs, nil))

	// key order and spacing matter to signature checks downstream
	body := `{"signature": "keep-me",  "b":1, "a":2}`
	var seen string
	r := gin.New()
	r.Use(MetricsMiddleware(), Logging(l))
	r.POST("/echo", func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		seen = string(raw)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, seen)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.NotContains(t, logs.String(), "keep-me")
	assert.Contains(t, logs.String(), "http_request")
}

func TestLoggingStreamsLargeBodiesUnchanged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&logs, nil))

	body := `{"name":"` + strings.Repeat("x", 3*reqBodyLimit) + `","secret":"hide-me"}`
	var seen string
	r := gin.New()
	r.Use(Logging(l))
	r.POST("/echo", func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		seen = string(raw)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, body, seen)
	assert.Contains(t, logs.String(), "...truncated...")
	assert.NotContains(t, logs.String(), "hide-me")
	assert.NotContains(t, logs.String(), strings.Repeat("x", reqBodyLimit))
}

func TestLoggingCapsRequestBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var readErr error
	r := gin.New()
	r.Use(Logging(l))
	r.POST("/sink", func(c *gin.Context) {
		_, readErr = io.Copy(io.Discard, c.Request.Body)
		c.Status(http.StatusOK)
	})

	big := bytes.Repeat([]byte("a"), MaxRequestBody+1)
	req := httptest.NewRequest(http.MethodPost, "/sink", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var tooBig *http.MaxBytesError
	assert.ErrorAs(t, readErr, &tooBig)
}
