package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/proto"
	"github.com/vovakirdan/chatcore/internal/store"
)

func inbound(typ, data string) proto.Inbound {
	return proto.Inbound{Type: typ, Data: json.RawMessage(data)}
}

func TestInboundToCommand(t *testing.T) {
	cases := []struct {
		name string
		in   proto.Inbound
		want core.Command
	}{
		{"register", inbound("register", `{"userId":"u1"}`), core.Command{Kind: core.CommandRegister, UserID: "u1"}},
		{"join", inbound("join-conversation", `{"conversationId":"c1"}`), core.Command{Kind: core.CommandJoinRoom, Room: "c1"}},
		{"leave", inbound("leave-conversation", `{"conversationId":"c1"}`), core.Command{Kind: core.CommandLeaveRoom, Room: "c1"}},
		{"typing", inbound("typing", `{"conversationId":"c1","userId":"u1"}`), core.Command{Kind: core.CommandTyping, Room: "c1", UserID: "u1"}},
		{"stop typing", inbound("stop-typing", `{"conversationId":"c1","userId":"u1"}`), core.Command{Kind: core.CommandStopTyping, Room: "c1", UserID: "u1"}},
		{"mark read", inbound("mark-read", `{"conversationId":"c1","userId":"u2"}`), core.Command{Kind: core.CommandMarkRead, Room: "c1", UserID: "u2"}},
		{"online", inbound("user-online", `{"userId":"u1"}`), core.Command{Kind: core.CommandPresence, UserID: "u1"}},
		{"register bare id", inbound("register", `"u1"`), core.Command{Kind: core.CommandRegister, UserID: "u1"}},
		{"join bare id", inbound("join-conversation", `"conv-1"`), core.Command{Kind: core.CommandJoinRoom, Room: "conv-1"}},
		{"leave bare id", inbound("leave-conversation", ` "conv-1"`), core.Command{Kind: core.CommandLeaveRoom, Room: "conv-1"}},
		{"online bare id", inbound("user-online", `"u1"`), core.Command{Kind: core.CommandPresence, UserID: "u1"}},
		{
			"image message",
			inbound("send-message", `{"conversationId":"c1","senderId":"u1","content":"","type":"image","fileUrl":"https://cdn.example/a.png"}`),
			core.Command{Kind: core.CommandSendMessage, Room: "c1", Message: core.Message{
				ConversationID: "c1",
				SenderID:       "u1",
				Kind:           store.MessageKindImage,
				FileURL:        "https://cdn.example/a.png",
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, perr := inboundToCommand(tc.in)
			require.Nil(t, perr)
			require.Equal(t, tc.want, *cmd)
		})
	}
}

func TestInboundToCommandRejects(t *testing.T) {
	cases := map[string]proto.Inbound{
		"unknown type":       inbound("hello", `{}`),
		"malformed payload":  inbound("register", `{"userId":`),
		"missing user":       inbound("register", `{}`),
		"missing data":       {Type: "join-conversation"},
		"bad kind":           inbound("send-message", `{"conversationId":"c1","content":"x","type":"sticker"}`),
		"bad url":            inbound("send-message", `{"conversationId":"c1","type":"file","fileUrl":"not a url"}`),
		"wrong field type":   inbound("mark-read", `{"conversationId":42}`),
		"empty bare id":      inbound("register", `""`),
		"bare number":        inbound("join-conversation", `42`),
		"bare id for typing": inbound("typing", `"c1"`),
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			cmd, perr := inboundToCommand(in)
			require.Nil(t, cmd)
			require.NotNil(t, perr)
			require.Equal(t, core.ErrCodeInvalidInput, perr.Code)
		})
	}
}

func TestValidationMessageUsesWireNames(t *testing.T) {
	_, perr := inboundToCommand(inbound("join-conversation", `{}`))
	require.NotNil(t, perr)
	require.Equal(t, "conversationId is required", perr.Msg)
}

func TestOutboundFromEvent(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	out := outboundFromEvent(&core.Event{Kind: core.EventNewMessage, Message: core.Message{
		ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "hi", Kind: store.MessageKindText, ReadBy: []string{"u1"}, CreatedAt: at,
	}})
	raw, err := json.Marshal(out)
	req.NoError(err)
	req.JSONEq(`{"type":"event","event":"new-message","data":{
		"id":"m1","conversationId":"c1","senderId":"u1","content":"hi","type":"text","readBy":["u1"],"createdAt":"2026-02-03T04:05:06Z"}}`, string(raw))

	out = outboundFromEvent(&core.Event{Kind: core.EventUserStopTyping, Room: "c1", UserID: "u1"})
	req.Equal(proto.EventUserStopTyping, out.Event)
	req.Equal(proto.EventConversationUser{ConversationID: "c1", UserID: "u1"}, out.Data)

	out = outboundFromEvent(&core.Event{Kind: core.EventUserStatus, UserID: "u1", Status: core.PresenceOffline})
	req.Equal(proto.UserStatusData{UserID: "u1", Status: "offline"}, out.Data)

	out = outboundFromEvent(&core.Event{Kind: core.EventError, Error: core.NewCoreError(core.ErrCodeNotFound, "conversation not found")})
	raw, err = json.Marshal(out)
	req.NoError(err)
	req.JSONEq(`{"type":"error","event":"error","error":{"code":"not_found","msg":"conversation not found"}}`, string(raw))
}
