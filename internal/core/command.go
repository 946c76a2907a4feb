package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage delivers a chat message to a user or to everyone.
	CommandSendMessage CommandKind = iota
	// CommandSetTyping toggles the ephemeral typing indicator.
	CommandSetTyping
	// CommandMarkRead flips the read flag on a received private message.
	CommandMarkRead
)

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	Recipient Recipient // for CommandSendMessage and CommandSetTyping
	Content   string    // for CommandSendMessage
	IsTyping  bool      // for CommandSetTyping
	MessageID int64     // for CommandMarkRead
}
