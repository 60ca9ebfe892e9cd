package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NotAvailable fills message fields a source could not provide.
const NotAvailable = "N/A"

// Header holds the structured fields of a root message as supplied by a mail source.
type Header struct {
	From    string
	Sent    string
	To      string
	Subject string
}

// Message is one message of a reconstructed thread.
type Message struct {
	From    string `json:"from"`
	Sent    string `json:"sent"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WithDefaults returns a copy of m where every blank field carries NotAvailable.
// Body is left as is; an empty body is a legitimate value.
func (m Message) WithDefaults() Message {
	m.From = orNotAvailable(m.From)
	m.Sent = orNotAvailable(m.Sent)
	m.To = orNotAvailable(m.To)
	m.Subject = orNotAvailable(m.Subject)
	return m
}

func orNotAvailable(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotAvailable
	}
	return v
}

// Thread is a reply chain ordered newest first: index 0 is the root message,
// each following index is the next older quoted ancestor.
type Thread []Message

// Root returns the newest message of the thread.
func (t Thread) Root() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[0], true
}

// Map returns the position-keyed view of the thread ("0", "1", ...).
func (t Thread) Map() map[string]Message {
	out := make(map[string]Message, len(t))
	for i, msg := range t {
		out[strconv.Itoa(i)] = msg
	}
	return out
}

// MarshalJSON encodes the thread as an object keyed by position, in position order.
func (t Thread) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, msg := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i)))
		buf.WriteByte(':')
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the position-keyed object produced by MarshalJSON.
// Keys must be contiguous from "0".
func (t *Thread) UnmarshalJSON(data []byte) error {
	var raw map[string]Message
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Thread, len(raw))
	for i := range out {
		msg, ok := raw[strconv.Itoa(i)]
		if !ok {
			return fmt.Errorf("thread position %d missing", i)
		}
		out[i] = msg
	}
	*t = out
	return nil
}
