package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldsweep/extension/internal/config"
)

// webhookServer serves /healthcheck and captures report posts on any
// other path.
func webhookServer(t *testing.T, status int) (*httptest.Server, *capturedPosts) {
	t.Helper()
	cp := &capturedPosts{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthcheck" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var body webhookDelivery
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cp.add(r.Header.Get("X-API-Key"), body)
		w.WriteHeader(status)
	}))

	return srv, cp
}

type capturedPosts struct {
	mu     sync.Mutex
	keys   []string
	bodies []webhookDelivery
}

func (c *capturedPosts) add(key string, body webhookDelivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	c.bodies = append(c.bodies, body)
}

func (c *capturedPosts) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func TestWebhook_InitHealthcheck(t *testing.T) {
	srv, _ := webhookServer(t, http.StatusOK)
	defer srv.Close()

	w := NewWebhook(config.WebhookReportConfig{URL: srv.URL + "/api/v1/sweeps"}, testSession(), zerolog.Nop())
	require.NoError(t, w.Init())
}

func TestWebhook_InitFailsWhenUnreachable(t *testing.T) {
	w := NewWebhook(config.WebhookReportConfig{URL: "http://127.0.0.1:1/api/v1/sweeps"}, testSession(), zerolog.Nop())
	err := w.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "healthcheck request failed")
}

func TestWebhook_InitFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(config.WebhookReportConfig{URL: srv.URL + "/api/v1/sweeps"}, testSession(), zerolog.Nop())
	err := w.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "healthcheck returned status 500")
}

func TestWebhook_RecordPassPostsJSON(t *testing.T) {
	srv, cp := webhookServer(t, http.StatusOK)
	defer srv.Close()

	w := NewWebhook(config.WebhookReportConfig{
		URL:    srv.URL + "/api/v1/sweeps",
		APIKey: "sekrit",
	}, testSession(), zerolog.Nop())
	require.NoError(t, w.Init())

	r := testReport(5, false)
	require.NoError(t, w.RecordPass(r))

	require.Equal(t, 1, cp.len())
	assert.Equal(t, "sekrit", cp.keys[0])
	assert.Equal(t, "worldsweep", cp.bodies[0].Extension)
	assert.Equal(t, "1.0.0-test", cp.bodies[0].Version)
	require.NotNil(t, cp.bodies[0].Report)
	assert.Equal(t, r.PassID, cp.bodies[0].Report.PassID)
	assert.Equal(t, 5, cp.bodies[0].Report.Removed)
}

func TestWebhook_RecordPassErrorStatus(t *testing.T) {
	srv, _ := webhookServer(t, http.StatusInternalServerError)
	defer srv.Close()

	w := NewWebhook(config.WebhookReportConfig{URL: srv.URL + "/api/v1/sweeps"}, testSession(), zerolog.Nop())
	require.NoError(t, w.Init())

	err := w.RecordPass(testReport(1, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook returned status 500")
}
