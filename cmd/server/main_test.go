package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatcore/internal/auth"
)

func TestTokenCommand(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte("jwt_secret: cli-secret\njwt_issuer: chatcore\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--config", path, "--user", "u42"})
	req.NoError(cmd.Execute())

	claims, err := auth.ValidateToken(&auth.JWTConfig{Secret: []byte("cli-secret"), Issuer: "chatcore"}, strings.TrimSpace(out.String()))
	req.NoError(err)
	req.Equal("u42", claims.UserID)
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9999\"\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", path, "--user", "u42"})
	require.Error(t, cmd.Execute())
}
