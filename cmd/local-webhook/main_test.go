package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWebhookEchoesDelivery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter("/webhook", zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"type":"notification.created","payload":{"id":"n1"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", "notification.created")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "POST", entries[0].ContextMap()["method"])
	assert.Contains(t, entries[0].ContextMap()["headers"], "X-Webhook-Event: notification.created")
	assert.Contains(t, entries[1].Message, "\n  \"payload\": {\n    \"id\": \"n1\"")
}

func TestWebhookAcceptsAnyMethod(t *testing.T) {
	r := newRouter("/hook", zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/hook", strings.NewReader("plain text")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOtherPathsAreNotFound(t *testing.T) {
	r := newRouter("/webhook", zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrettyBody(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyBody([]byte(`{"a":1}`)))
	assert.Equal(t, "not json", prettyBody([]byte("not json")))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/webhook", normalizePath(""))
	assert.Equal(t, "/hooks/in", normalizePath("hooks/in"))
	assert.Equal(t, "/x", normalizePath(" /x "))
}
