// internal/enginestub/server_test.go
package enginestub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/automate-cli/internal/automation"
	"github.com/xkilldash9x/automate-cli/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func setupStub(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	stub := New("127.0.0.1:0", nil)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)
	return stub, ts
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_Endpoints(t *testing.T) {
	_, ts := setupStub(t)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"ok","engine":"stub","protocol":"HTTP/1.1"}`, string(body))
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("automate reports the legacy count name", func(t *testing.T) {
		status, body := post(t, ts.URL+"/automate", `{"objective":"x","actions":[{"operation":"type","content":"a"}]}`)
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"success":true,"message":"Executed 1 actions","executedActions":1}`, body)
	})

	t.Run("automate rejects an incomplete action", func(t *testing.T) {
		status, body := post(t, ts.URL+"/automate", `{"objective":"x","actions":[{"operation":"click","x":"1"}]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.JSONEq(t, `{"error":"action 0: click requires x and y"}`, body)
	})

	t.Run("automate rejects a missing operation", func(t *testing.T) {
		status, body := post(t, ts.URL+"/automate", `{"objective":"x","actions":[{"content":"a"}]}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, `"error"`)
	})

	t.Run("generate returns a plan", func(t *testing.T) {
		status, body := post(t, ts.URL+"/generate-actions", `{"objective":"type hi"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"actions":[{"operation":"type","content":"hi"}]}`, body)
	})

	t.Run("empty objective is a bad request", func(t *testing.T) {
		for _, path := range []string{"/direct-automate", "/generate-actions"} {
			status, body := post(t, ts.URL+path, `{"objective":""}`)
			assert.Equal(t, http.StatusBadRequest, status, path)
			assert.JSONEq(t, `{"error":"objective is required"}`, body, path)
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		status, body := post(t, ts.URL+"/direct-automate", `{"objective":`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, "invalid request body")
	})

	t.Run("preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/automate", nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), automation.RequestIDHeader)
	})

	t.Run("unknown path and wrong method", func(t *testing.T) {
		status, body := post(t, ts.URL+"/nope", `{}`)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body, "no such endpoint")

		status, _ = post(t, ts.URL+"/health", `{}`)
		assert.Equal(t, http.StatusMethodNotAllowed, status)
	})
}

// TestServer_WithClient drives the stub through the real client.
func TestServer_WithClient(t *testing.T) {
	stub, ts := setupStub(t)
	client := automation.NewClient(config.AutomationConfig{Endpoint: ts.URL}, ts.Client(), nil)
	ctx := context.Background()

	require.True(t, client.CheckHealth(ctx))
	assert.Equal(t, automation.StateConnected, client.State())

	direct := client.RunDirect(ctx, "search for cats")
	assert.True(t, direct.Success)
	n, ok := direct.Executed()
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	actions, err := client.GenerateActions(ctx, "open terminal then press ctrl+l")
	require.NoError(t, err)
	require.Len(t, actions, 4)
	assert.Equal(t, automation.OpKeyPress, actions[3].Operation())

	exec := client.Execute(ctx, automation.NewExecutionRequest("open terminal", actions...))
	assert.True(t, exec.Success)
	n, _ = exec.Executed()
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(6), stub.Executed())

	failed := client.RunDirect(ctx, "")
	assert.False(t, failed.Success)
	assert.Equal(t, automation.MsgAutomationFailed, failed.Message)
	assert.Equal(t, "objective is required", failed.Error)
}

func TestServer_Run(t *testing.T) {
	stub := New("127.0.0.1:0", nil)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- stub.Run(ctx, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("stub exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("stub never became ready")
	}

	client := automation.NewClient(config.AutomationConfig{Endpoint: "http://" + addr}, &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}, nil)
	assert.True(t, client.CheckHealth(context.Background()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stub did not shut down")
	}
}

func TestServer_RunListenError(t *testing.T) {
	err := New("256.0.0.1:99999", nil).Run(context.Background(), nil)
	assert.Error(t, err)
}
