package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/auth"
	"github.com/vovakirdan/chatcore/internal/config"
	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/store"
)

// NewServer builds the HTTP server: health check, websocket endpoint and the
// conversation API.
func NewServer(hub *core.Hub, repo store.Repository, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	// The API needs a caller identity, which only a verified token provides.
	if jwtCfg.Enabled() {
		conversations := NewConversationHandlers(repo, hub, cfg.HistoryLimit, cfg.PersistTimeout, logger)
		api := router.Group("/api", AuthMiddleware(jwtCfg, logger))
		api.POST("/conversations", conversations.CreateConversation)
		api.GET("/conversations", conversations.ListConversations)
		api.GET("/conversations/:id/messages", conversations.ListMessages)
	} else {
		logger.Warn().Msg("jwt_secret is empty: websocket identities are unverified and /api is disabled")
	}

	// The websocket upgrade hijacks the connection, which gin's writer refuses.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, WSOptions{
		JWT:                jwtCfg,
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		EventBuffer:        cfg.EventBuffer,
	}, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
