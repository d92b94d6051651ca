package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactBodyNested(t *testing.T) {
	body := []byte(`{"owner":"0xabc","operator":{"private_key":"0xdead","admin_key":"k"},"transfers":[{"signature":"0xbeef","amount":"1"}]}`)
	out := redactBody(body)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "0xabc", data["owner"])
	op := data["operator"].(map[string]interface{})
	assert.Equal(t, "***", op["private_key"])
	assert.Equal(t, "***", op["admin_key"])
	transfer := data["transfers"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "***", transfer["signature"])
	assert.Equal(t, "1", transfer["amount"])
}

func TestRedactBodyInvalidJSON(t *testing.T) {
	assert.Equal(t, "[redacted]", redactBody([]byte("not-json")))
	assert.Equal(t, "", redactBody(nil))
}

func TestRequestLogMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, rec.Header().Get(HeaderRequestID), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(HeaderRequestID))
}
