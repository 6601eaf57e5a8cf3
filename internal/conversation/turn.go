// Package conversation holds the append-only transcript of a session.
package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/aura/internal/booking"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the transcript. Turns are never modified after they
// are appended.
type Turn struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Text       string      `json:"text"`
	CreatedAt  time.Time   `json:"created_at"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Attachment carries either a generated image or an order, never both.
type Attachment struct {
	Image *Image `json:"image,omitempty"`
	Order *Order `json:"order,omitempty"`
}

// Image is a generated image record.
type Image struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// Order is a booking result tagged with the domain that produced it.
type Order struct {
	Domain  booking.Domain  `json:"domain"`
	Payload booking.Payload `json:"payload"`
}

// UnmarshalJSON decodes the payload into the concrete type of the domain.
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw struct {
		Domain  booking.Domain  `json:"domain"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Domain = raw.Domain
	o.Payload = nil
	if len(raw.Payload) == 0 || string(raw.Payload) == "null" {
		return nil
	}
	p, err := booking.DecodePayload(raw.Domain, raw.Payload)
	if err != nil {
		return err
	}
	o.Payload = p
	return nil
}

// ImageAttachment builds an image attachment.
func ImageAttachment(url, prompt string) *Attachment {
	return &Attachment{Image: &Image{URL: url, Prompt: prompt}}
}

// OrderAttachment builds an order attachment.
func OrderAttachment(d booking.Domain, p booking.Payload) *Attachment {
	return &Attachment{Order: &Order{Domain: d, Payload: p}}
}

// Identity is the signed-in user a session belongs to.
type Identity struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DisplayName prefers the full name and falls back to the email.
func (i Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.Email
}

// Greeting renders the seed assistant message of every session.
func Greeting(id Identity, assistantName string) string {
	return fmt.Sprintf("Hello %s! I'm %s, your Universal Reasoning Agent. "+
		"I can help you think through complex problems, manage tasks, and understand the world around you. "+
		"How can I assist you today?", id.DisplayName(), assistantName)
}
