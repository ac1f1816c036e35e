package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatcore/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestAppServesAndShutsDown(t *testing.T) {
	req := require.New(t)
	cfg := config.Default()
	cfg.Addr = freeAddr(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "chat.db")
	cfg.ShutdownTimeout = time.Second
	logger := zerolog.Nop()

	application, err := New(&cfg, &logger)
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- application.Run(ctx) }()

	req.Eventually(func() bool {
		resp, err := http.Get("http://" + cfg.Addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		req.NoError(err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppRejectsUnreachableRelay(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "chat.db")
	cfg.AMQPURL = "amqp://guest:guest@" + freeAddr(t) + "/"
	logger := zerolog.Nop()

	_, err := New(&cfg, &logger)
	require.Error(t, err)
}
