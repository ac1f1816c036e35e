package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/proto"
	"github.com/vovakirdan/chatcore/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func invalidInput(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeInvalidInput, Msg: msg}
}

// decode unmarshals and validates an inbound payload.
func decode[T any](raw json.RawMessage) (T, *proto.Error) {
	var data T
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, invalidInput("malformed payload")
	}
	if err := validate.Struct(data); err != nil {
		return data, invalidInput(describeValidation(err))
	}
	return data, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid payload"
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeRegister:
		data, perr := decode[proto.RegisterData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandRegister, UserID: data.UserID}, nil
	case proto.InboundTypeJoinConversation, proto.InboundTypeLeaveConversation:
		data, perr := decode[proto.ConversationData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeLeaveConversation {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, Room: data.ConversationID}, nil
	case proto.InboundTypeSendMessage:
		data, perr := decode[proto.SendMessageData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Room: data.ConversationID,
			Message: core.Message{
				ConversationID: data.ConversationID,
				SenderID:       data.SenderID,
				Content:        data.Content,
				Kind:           store.MessageKind(data.Type),
				FileURL:        data.FileURL,
			},
		}, nil
	case proto.InboundTypeTyping, proto.InboundTypeStopTyping, proto.InboundTypeMarkRead:
		data, perr := decode[proto.ConversationUserData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		kind := map[string]core.CommandKind{
			proto.InboundTypeTyping:     core.CommandTyping,
			proto.InboundTypeStopTyping: core.CommandStopTyping,
			proto.InboundTypeMarkRead:   core.CommandMarkRead,
		}[inbound.Type]
		return &core.Command{Kind: kind, Room: data.ConversationID, UserID: data.UserID}, nil
	case proto.InboundTypeUserOnline:
		data, perr := decode[proto.UserOnlineData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandPresence, UserID: data.UserID}, nil
	default:
		return nil, invalidInput("unknown message type")
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return eventOutbound(proto.EventNewMessage, messageView(event.Message))
	case core.EventUserTyping:
		return eventOutbound(proto.EventUserTyping, proto.EventConversationUser{ConversationID: event.Room, UserID: event.UserID})
	case core.EventUserStopTyping:
		return eventOutbound(proto.EventUserStopTyping, proto.EventConversationUser{ConversationID: event.Room, UserID: event.UserID})
	case core.EventMessagesRead:
		return eventOutbound(proto.EventMessagesRead, proto.EventConversationUser{ConversationID: event.Room, UserID: event.UserID})
	case core.EventUserStatus:
		return eventOutbound(proto.EventUserStatus, proto.UserStatusData{UserID: event.UserID, Status: string(event.Status)})
	case core.EventConversationCreated:
		if event.Conversation == nil {
			return errorOutbound(&proto.Error{Code: "unknown", Msg: "missing conversation"})
		}
		return eventOutbound(proto.EventConversationCreated, conversationView(event.Conversation))
	case core.EventError:
		if event.Error == nil {
			return errorOutbound(&proto.Error{Code: "unknown", Msg: "unknown error"})
		}
		return errorOutbound(&proto.Error{Code: event.Error.Code, Msg: event.Error.Message})
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func errorOutbound(err *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Event: proto.EventError, Error: err}
}

func messageView(m core.Message) proto.EventMessage {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return proto.EventMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           string(m.Kind),
		FileURL:        m.FileURL,
		ReadBy:         readBy,
		CreatedAt:      m.CreatedAt,
	}
}

func storedMessageView(m *store.Message) proto.EventMessage {
	return messageView(core.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           m.Kind,
		FileURL:        m.FileURL,
		ReadBy:         m.ReadBy,
		CreatedAt:      m.CreatedAt,
	})
}

func conversationView(c *store.Conversation) proto.Conversation {
	view := proto.Conversation{
		ID:           c.ID,
		Participants: c.Participants,
		Unread:       c.Unread,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.LastMessage != nil {
		view.LastMessage = &proto.LastMessage{
			SenderID:  c.LastMessage.SenderID,
			Content:   c.LastMessage.Content,
			CreatedAt: c.LastMessage.CreatedAt,
		}
	}
	return view
}
