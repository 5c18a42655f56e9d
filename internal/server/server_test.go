package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeFiCh/jsonrpsee/internal/acl"
	"github.com/DeFiCh/jsonrpsee/internal/jsonrpc"
	"github.com/DeFiCh/jsonrpsee/internal/resource"
	"github.com/DeFiCh/jsonrpsee/internal/router"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testMethods(t *testing.T) *router.Methods {
	t.Helper()

	methods := router.NewMethods()
	require.NoError(t, methods.Register(router.NewSyncMethod("echo",
		func(id json.RawMessage, params router.Params, sink *router.Sink) bool {
			var args []json.RawMessage
			if err := json.Unmarshal(params.Raw, &args); err != nil || len(args) == 0 {
				sink.SendError(id, jsonrpc.ErrInvalidParams)
				return false
			}
			return sink.SendResponse(id, args[0])
		})))
	require.NoError(t, methods.Register(router.NewSyncMethod("answer",
		func(id json.RawMessage, params router.Params, sink *router.Sink) bool {
			return sink.SendResponse(id, json.RawMessage(`42`))
		})))
	require.NoError(t, methods.Register(router.NewAsyncMethod("slow",
		func(ctx context.Context, id json.RawMessage, params router.Params, sink *router.Sink) bool {
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
			}
			return sink.SendResponse(id, json.RawMessage(`"done"`))
		}, resource.Claim{Label: "slots", Units: 1})))
	return methods
}

// startServer builds, configures and starts a server on a random port,
// returning its base URL. Cleanup stops it.
func startServer(t *testing.T, configure func(*Builder)) string {
	t.Helper()

	builder := NewBuilder().WithLogger(testLogger())
	require.NoError(t, builder.RegisterResource("slots", 2, 0))
	if configure != nil {
		configure(builder)
	}

	srv, err := builder.Build("127.0.0.1:0")
	require.NoError(t, err)

	handle, err := srv.Start(testMethods(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := handle.Stop(); err == nil {
			handle.Wait()
		}
	})

	return fmt.Sprintf("http://%s", srv.Addr().String())
}

func post(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestPostSingleRequest(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url, `{"jsonrpc":"2.0","method":"echo","params":["hi"],"id":7}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":"hi","id":7}`, readBody(t, resp))
}

func TestPostNotification(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url, `{"jsonrpc":"2.0","method":"echo","params":["hi"]}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
}

func TestPostBatch(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url,
		`[{"jsonrpc":"2.0","method":"echo","params":["a"],"id":1},`+
			`{"jsonrpc":"2.0","method":"slow","params":[],"id":2}]`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var envelopes []jsonrpc.Response
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &envelopes))
	require.Len(t, envelopes, 2)

	ids := map[string]bool{}
	for _, e := range envelopes {
		ids[string(e.ID)] = true
	}
	assert.Equal(t, map[string]bool{"1": true, "2": true}, ids)
}

func TestPostEmptyBatch(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url, `[]`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, `"code":-32600`)
	assert.Contains(t, body, `"id":null`)
	assert.False(t, strings.HasPrefix(body, "["), "empty batch gets a single envelope")
}

func TestPostParseError(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url, `not-json`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"code":-32700`)
}

func TestPostUnknownMethod(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url, `{"jsonrpc":"2.0","method":"nope","id":9}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, `"code":-32601`)
	assert.Contains(t, body, `"id":9`)
}

func TestPostBatchDisabled(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		b.BatchRequestsSupported(false)
	})

	resp := post(t, url, `[{"jsonrpc":"2.0","method":"echo","params":["a"],"id":1}]`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, fmt.Sprintf(`"code":%d`, jsonrpc.CodeBatchesNotSupported))
	assert.Contains(t, body, `"id":null`)
}

func TestPostBodyTooLarge(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		b.MaxRequestBodySize(64)
	})

	resp := post(t, url, `{"jsonrpc":"2.0","method":"echo","params":["`+strings.Repeat("x", 256)+`"],"id":1}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "64")
}

func TestPostWrongContentType(t *testing.T) {
	url := startServer(t, nil)

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	readBody(t, resp)
}

func TestContentTypeCharsetAccepted(t *testing.T) {
	url := startServer(t, nil)

	req, err := http.NewRequest(http.MethodPost, url,
		strings.NewReader(`{"jsonrpc":"2.0","method":"answer","id":1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "42")
}

func TestMethodNotAllowed(t *testing.T) {
	url := startServer(t, nil)

	req, err := http.NewRequest(http.MethodPut, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	readBody(t, resp)

	// GET without a configured health endpoint is also refused.
	resp, err = http.Get(url + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	readBody(t, resp)
}

func TestCORSPreflight(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		b.SetAccessControl(acl.New(acl.Config{
			AllowedOrigins: []string{"https://ok.com"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	})

	req, err := http.NewRequest(http.MethodOptions, url, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://ok.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://ok.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	readBody(t, resp)
}

func TestCORSPreflightDeniedOrigin(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		b.SetAccessControl(acl.New(acl.Config{
			AllowedOrigins: []string{"https://ok.com"},
		}))
	})

	req, err := http.NewRequest(http.MethodOptions, url, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Origin")
}

func TestCORSPreflightWithoutOrigin(t *testing.T) {
	url := startServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)
}

func TestHostNotAllowed(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		b.SetAccessControl(acl.New(acl.Config{
			AllowedHosts: []string{"allowed.example.com"},
		}))
	})

	resp := post(t, url, `{"jsonrpc":"2.0","method":"answer","id":1}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Host")
}

func TestOriginEchoedOnPost(t *testing.T) {
	url := startServer(t, nil)

	resp := post(t, url, `{"jsonrpc":"2.0","method":"answer","id":1}`,
		map[string]string{"Origin": "https://other.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://other.com", resp.Header.Get("Access-Control-Allow-Origin"))
	readBody(t, resp)

	// Without an origin header no allow-origin is emitted.
	resp = post(t, url, `{"jsonrpc":"2.0","method":"answer","id":1}`, nil)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	readBody(t, resp)
}

func TestHealthEndpoint(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		require.NoError(t, b.SetHealthAPI("/health", "answer"))
	})

	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "42", readBody(t, resp))

	// Wrong path is still method-not-allowed.
	resp, err = http.Get(url + "/other")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	readBody(t, resp)
}

func TestHealthEndpointUnknownMethod(t *testing.T) {
	url := startServer(t, func(b *Builder) {
		require.NoError(t, b.SetHealthAPI("/health", "missing"))
	})

	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	readBody(t, resp)
}

func TestHealthPathValidation(t *testing.T) {
	builder := NewBuilder()
	assert.Error(t, builder.SetHealthAPI("health", "answer"))
	assert.NoError(t, builder.SetHealthAPI("/health", "answer"))
}

func TestServerBusyOnExhaustedResource(t *testing.T) {
	url := startServer(t, nil)

	// Two slow calls occupy both slots; the third is refused immediately.
	resp := post(t, url,
		`[{"jsonrpc":"2.0","method":"slow","params":[],"id":1},`+
			`{"jsonrpc":"2.0","method":"slow","params":[],"id":2},`+
			`{"jsonrpc":"2.0","method":"slow","params":[],"id":3}]`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelopes []jsonrpc.Response
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &envelopes))
	require.Len(t, envelopes, 3)

	busy := 0
	for _, e := range envelopes {
		if e.Error != nil && e.Error.Code == jsonrpc.CodeServerIsBusy {
			busy++
		}
	}
	assert.Equal(t, 1, busy, "exactly one call should be refused as busy")
}

func TestStopIsOneShot(t *testing.T) {
	builder := NewBuilder().WithLogger(testLogger())
	srv, err := builder.Build("127.0.0.1:0")
	require.NoError(t, err)

	handle, err := srv.Start(router.NewMethods())
	require.NoError(t, err)

	require.NoError(t, handle.Stop())
	handle.Wait()
	assert.ErrorIs(t, handle.Stop(), ErrAlreadyStopped)
}

func TestStartTwiceFails(t *testing.T) {
	builder := NewBuilder().WithLogger(testLogger())
	srv, err := builder.Build("127.0.0.1:0")
	require.NoError(t, err)

	handle, err := srv.Start(router.NewMethods())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = handle.Stop()
		handle.Wait()
	})

	_, err = srv.Start(router.NewMethods())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStartRejectsBadResourceClaims(t *testing.T) {
	builder := NewBuilder().WithLogger(testLogger())
	srv, err := builder.Build("127.0.0.1:0")
	require.NoError(t, err)

	methods := router.NewMethods()
	require.NoError(t, methods.Register(router.NewSyncMethod("m",
		func(id json.RawMessage, params router.Params, sink *router.Sink) bool { return true },
		resource.Claim{Label: "unregistered", Units: 1})))

	_, err = srv.Start(methods)
	assert.Error(t, err)
}

func TestBaseContextCancelStopsServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	builder := NewBuilder().WithLogger(testLogger()).BaseContext(ctx)
	srv, err := builder.Build("127.0.0.1:0")
	require.NoError(t, err)

	handle, err := srv.Start(router.NewMethods())
	require.NoError(t, err)

	cancel()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down on base context cancellation")
	}
}
