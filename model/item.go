package model

// Item is a single mail-store entry handed to the thread parser: the structured
// root header plus the raw body, which may embed quoted history.
type Item struct {
	ConversationID string
	MessageID      string
	Header         Header
	Body           string
	Size           int64
}

// Envelope wraps an item alongside an optional error encountered while decoding.
type Envelope struct {
	Item Item
	Err  error
}
