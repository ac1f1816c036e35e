package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatcore/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "access token (required when the server has jwt_secret)")
	user := flag.String("user", "tester", "user ID to register as")
	conversation := flag.String("conversation", "", "conversation ID to join and post to")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *conversation == "" {
		return fmt.Errorf("-conversation is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := *addr
	if *token != "" {
		url += "?token=" + *token
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	steps := []struct {
		typ  string
		data any
	}{
		{proto.InboundTypeRegister, proto.RegisterData{UserID: *user}},
		{proto.InboundTypeJoinConversation, proto.ConversationData{ConversationID: *conversation}},
		{proto.InboundTypeSendMessage, proto.SendMessageData{ConversationID: *conversation, Content: *text, Type: "text"}},
	}
	for _, step := range steps {
		if err := send(step.typ, step.data); err != nil {
			return err
		}
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch {
		case outbound.Error != nil:
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		case outbound.Event == proto.EventNewMessage:
			fmt.Printf("received %s: %s\n", outbound.Event, outbound.Data)
			return nil
		default:
			fmt.Printf("received %s\n", outbound.Event)
		}
	}
}
