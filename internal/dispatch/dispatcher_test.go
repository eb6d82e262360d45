package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostPort(t *testing.T, server *httptest.Server) (string, int) {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func newTestDispatcher(t *testing.T, timeout time.Duration) *HTTPDispatcher {
	t.Helper()
	d, err := NewHTTPDispatcher(Config{Timeout: timeout, InsecureSkipVerify: true})
	require.NoError(t, err)
	return d
}

func TestDispatchPostsToActuatorEndpoint(t *testing.T) {
	var gotPath string
	var gotBody []byte
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	host, port := hostPort(t, server)
	d := newTestDispatcher(t, 0)

	result := d.Dispatch(context.Background(), host, port, Command{
		Actuator: "waterpump",
		Params:   json.RawMessage(`{"value":1}`),
	})

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, "/api/actuators/waterpump", gotPath)
	assert.JSONEq(t, `{"value":1}`, string(gotBody))
}

func TestDispatchEmptyParamsSendsEmptyObject(t *testing.T) {
	var gotBody []byte
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	host, port := hostPort(t, server)
	d := newTestDispatcher(t, 0)

	result := d.Dispatch(context.Background(), host, port, Command{Actuator: "led"})
	assert.True(t, result.Success)
	assert.JSONEq(t, `{}`, string(gotBody))
}

func TestDispatchNon2xxIsFailure(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "actuator jammed", http.StatusInternalServerError)
	}))
	defer server.Close()

	host, port := hostPort(t, server)
	d := newTestDispatcher(t, 0)

	result := d.Dispatch(context.Background(), host, port, Command{Actuator: "solenoid"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "500")
	assert.Equal(t, "solenoid", result.Actuator)
}

func TestDispatchUnreachableDevice(t *testing.T) {
	d := newTestDispatcher(t, 500*time.Millisecond)

	// nothing listens here
	result := d.Dispatch(context.Background(), "127.0.0.1", 1, Command{Actuator: "airpump"})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestDispatchHonorsContextCancel(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	host, port := hostPort(t, server)
	d := newTestDispatcher(t, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := d.Dispatch(ctx, host, port, Command{Actuator: "waterpump"})
	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), time.Second)
}
