package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/auth"
	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/proto"
	"github.com/vovakirdan/chatcore/internal/utils"
)

// WSOptions configures the websocket endpoint.
type WSOptions struct {
	// JWT enables handshake verification when it carries a secret.
	JWT                *auth.JWTConfig
	MaxMessageBytes    int64
	RateLimitPerMinute int
	EventBuffer        int
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var verified string
	if h.opts.JWT.Enabled() {
		token, ok := requestToken(r)
		if !ok {
			stdhttp.Error(w, "missing access token", stdhttp.StatusUnauthorized)
			return
		}
		claims, err := auth.ValidateToken(h.opts.JWT, token)
		if err != nil {
			h.log.Debug().Err(err).Msg("ws handshake rejected")
			stdhttp.Error(w, "invalid access token", stdhttp.StatusUnauthorized)
			return
		}
		verified = claims.UserID
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.opts.EventBuffer)
	client.VerifiedUserID = verified
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow(time.Now()) {
			h.reject(client, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"})
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.reject(client, invalidInput("malformed frame"))
			continue
		}

		cmd, perr := inboundToCommand(inbound)
		if perr != nil {
			h.log.Debug().Str("client_id", client.ID).Str("type", inbound.Type).Str("code", perr.Code).
				Msg("inbound rejected")
			h.reject(client, perr)
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reject queues a protocol error behind any events already pending for the client.
func (h *WSHandler) reject(client *core.Client, perr *proto.Error) {
	ev := &core.Event{Kind: core.EventError, Error: core.NewCoreError(perr.Code, perr.Msg)}
	select {
	case client.Events <- ev:
	default:
		h.log.Warn().Str("client_id", client.ID).Str("code", perr.Code).Msg("dropping protocol error for slow client")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
