package whatsapp

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidPayload     = errors.New("whatsapp: payload is not valid JSON")
	ErrNoMessage          = errors.New("whatsapp: payload carries no message")
	ErrNoSender           = errors.New("whatsapp: message has no sender")
	ErrUnsupportedMessage = errors.New("whatsapp: message has no text body")
)

const messagePath = "entry.0.changes.0.value.messages.0"

// Inbound is the first message of a webhook delivery.
type Inbound struct {
	From      string
	Text      string
	MessageID string
	Type      string
	// PhoneNumberID is the business number the message was sent to, when present.
	PhoneNumberID string
}

// ParseInbound extracts sender and text from
// entry[0].changes[0].value.messages[0]. For ErrUnsupportedMessage the
// returned Inbound still carries the sender so callers can reply.
func ParseInbound(body []byte) (*Inbound, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}
	msg := gjson.GetBytes(body, messagePath)
	if !msg.Exists() || !msg.IsObject() {
		return nil, ErrNoMessage
	}
	in := &Inbound{
		From:          msg.Get("from").String(),
		MessageID:     msg.Get("id").String(),
		Type:          msg.Get("type").String(),
		PhoneNumberID: gjson.GetBytes(body, "entry.0.changes.0.value.metadata.phone_number_id").String(),
	}
	if in.From == "" {
		return nil, ErrNoSender
	}
	text := msg.Get("text.body")
	if !text.Exists() || text.Type != gjson.String {
		return in, ErrUnsupportedMessage
	}
	in.Text = text.String()
	return in, nil
}
