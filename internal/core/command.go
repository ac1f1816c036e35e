package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegister binds the connection to a user identity.
	CommandRegister CommandKind = iota
	// CommandJoinRoom subscribes the client to a conversation room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the client from a conversation room.
	CommandLeaveRoom
	// CommandSendMessage persists a message and fans it out to the room.
	CommandSendMessage
	// CommandTyping announces that the user started typing.
	CommandTyping
	// CommandStopTyping announces that the user stopped typing.
	CommandStopTyping
	// CommandMarkRead marks a conversation as read by the user.
	CommandMarkRead
	// CommandPresence announces the user as online to every connection.
	CommandPresence
	// CommandDisconnect tears the connection down. Always the last command a client sees.
	CommandDisconnect
)

var commandNames = map[CommandKind]string{
	CommandRegister:    "register",
	CommandJoinRoom:    "join",
	CommandLeaveRoom:   "leave",
	CommandSendMessage: "send_message",
	CommandTyping:      "typing",
	CommandStopTyping:  "stop_typing",
	CommandMarkRead:    "mark_read",
	CommandPresence:    "presence",
	CommandDisconnect:  "disconnect",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	// UserID is the identity claimed by the payload (register, typing, mark-read, presence).
	UserID string
	// Room is the conversation (or user) room the command targets.
	Room    string
	Message Message
}
