package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
)

var ErrInvalidMessage = errors.New("invalid mail message")

// Addresses decodes from either a single address or a list.
type Addresses []string

func (a *Addresses) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*a = splitAddresses(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	out := make([]string, 0, len(many))
	for _, m := range many {
		out = append(out, splitAddresses(m)...)
	}
	*a = out
	return nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type Message struct {
	To      Addresses `json:"to" binding:"required,min=1"`
	Subject string    `json:"subject" binding:"required"`
	Text    string    `json:"text,omitempty" binding:"required_without=HTML"`
	HTML    string    `json:"html,omitempty"`
}

type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// Sender hands one message to a transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (Result, error)
}

// Validate applies the binding rules on Message, the same ones gin enforces
// on /send-email, and fills Text from HTML when only HTML is set.
func (m *Message) Validate() error {
	if err := binding.Validator.ValidateStruct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Text == "" {
		m.Text = HTMLToText(m.HTML)
	}
	return nil
}
