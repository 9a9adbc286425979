package message

// ChatMessage is a single inbound room message as seen by the bot.
type ChatMessage struct {
	Sender string `json:"sender"` // Nickname of the author
	Room   string `json:"room"`   // Room the message was posted in
	Body   string `json:"body"`   // Raw message text
}

// Outgoing is one reply carrying the same content in two representations.
// Plain is sent to transports without rich text, Markup to those with XHTML-like markup.
type Outgoing struct {
	Plain  string `json:"plain"`
	Markup string `json:"markup"`
}
