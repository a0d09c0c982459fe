package domain

// MessageType is the kind of an incoming chat message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// IncomingMessage is the transport-agnostic shape of a chat message the bot
// reacts to.
type IncomingMessage struct {
	ID       string
	From     string
	Type     MessageType
	Text     string
	MediaID  string
	MimeType string
	Filename string
}
