package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatcore/internal/auth"
	"github.com/vovakirdan/chatcore/internal/config"
	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/proto"
	"github.com/vovakirdan/chatcore/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
	cfg    config.Config
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.DatabasePath = ":memory:"
	return cfg
}

func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(st, &disabledLogger, core.Options{PersistTimeout: cfg.PersistTimeout})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	server := NewServer(hub, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		_ = st.Close()
	})

	return &testEnv{server: ts, store: st, cfg: cfg}
}

func (e *testEnv) wsURL(token string) string {
	u := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func mustToken(t *testing.T, userID string) string {
	t.Helper()

	token, err := auth.GenerateToken(&auth.JWTConfig{Secret: []byte(testSecret), TTL: time.Hour}, userID)
	require.NoError(t, err)
	return token
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}))
}

// readEvent reads frames until one carries the named event.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, name string) frame {
	t.Helper()

	for {
		var f frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for %s", name)
		if f.Event == name {
			return f
		}
	}
}

// announce registers userID on conn and waits until the hub has processed it.
func announce(t *testing.T, ctx context.Context, conn *websocket.Conn, userID string) {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeRegister, proto.RegisterData{UserID: userID})
	send(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: userID})
	for {
		f := readEvent(t, ctx, conn, proto.EventUserStatus)
		var status proto.UserStatusData
		require.NoError(t, json.Unmarshal(f.Data, &status))
		if status.UserID == userID {
			return
		}
	}
}
