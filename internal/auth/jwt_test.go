package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "chat",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()

	token, err := GenerateToken(cfg, "65f0c0ffee")
	req.NoError(err)

	claims, err := ValidateToken(cfg, token)
	req.NoError(err)
	req.Equal("65f0c0ffee", claims.UserID)
	req.Equal("test", claims.Issuer)
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := testConfig()

	expired, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: -time.Minute}, "u1")
	require.NoError(t, err)
	otherSecret, err := GenerateToken(&JWTConfig{Secret: []byte("other"), Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: time.Hour}, "u1")
	require.NoError(t, err)
	wrongIssuer, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: "elsewhere", Audience: cfg.Audience, TTL: time.Hour}, "u1")
	require.NoError(t, err)
	wrongAudience, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: cfg.Issuer, Audience: "admin", TTL: time.Hour}, "u1")
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": cfg.Issuer,
		"aud": cfg.Audience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(cfg.Secret)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":        "not-a-token",
		"expired":        expired,
		"other secret":   otherSecret,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"no user":        noUser,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateToken(cfg, token)
			require.Error(t, err)
		})
	}
}

func TestGenerateTokenRequiresUser(t *testing.T) {
	_, err := GenerateToken(testConfig(), "")
	require.ErrorIs(t, err, ErrMissingSubject)
}
