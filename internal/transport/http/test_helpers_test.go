package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pulsechat/internal/auth"
	"pulsechat/internal/config"
	"pulsechat/internal/core"
	"pulsechat/internal/proto"
	"pulsechat/internal/store/sqlite"
)

type testEnv struct {
	ts   *httptest.Server
	hub  *core.Hub
	st   *sqlite.SQLiteStore
	auth *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "pulsechat",
		Audience: "pulsechat",
		TTL:      time.Hour,
	})

	hub := core.NewHub(st, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	nop := zerolog.Nop()
	server := NewServer(hub, authService, st, config.Default(), &nop)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, st: st, auth: authService}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *stdhttp.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := stdhttp.Post(e.ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) getAuthed(t *testing.T, path, token string) *stdhttp.Response {
	t.Helper()

	req, err := stdhttp.NewRequest(stdhttp.MethodGet, e.ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// register creates a user through the public API and returns its token.
func (e *testEnv) register(t *testing.T, username, password string) string {
	t.Helper()

	resp := e.postJSON(t, "/api/register", RegisterRequest{Username: username, Password: password})
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	var authResp AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authResp))
	require.NotEmpty(t, authResp.Token)
	return authResp.Token
}

func decodeJSON[T any](t *testing.T, resp *stdhttp.Response) T {
	t.Helper()

	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// frame mirrors proto.Outbound with the payload left raw for per-event
// decoding.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (e *testEnv) dialWS(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}))
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) frame {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var f frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

// awaitEvent reads frames until one carries the named event, skipping
// unrelated events along the way.
func awaitEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) frame {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, ctx, conn)
		if f.Type == proto.OutboundTypeEvent && f.Event == event {
			return f
		}
	}
	t.Fatalf("event %q not received", event)
	return frame{}
}

func decodeData[T any](t *testing.T, f frame) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(f.Data, &out))
	return out
}
