package email

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/osteele/liquid"

	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/strictform"
)

const (
	confirmationSubject = `Welcome to the newsletter, {{ name }}`

	confirmationHTML = `<p>Hi {{ name | escape }},</p>
<p>Thanks for subscribing with {{ email | escape }}.</p>
{% if confirm_link != "" %}<p><a href="{{ confirm_link | escape }}">Confirm your subscription</a></p>
{% endif %}`

	confirmationText = `Hi {{ name }},

Thanks for subscribing with {{ email }}.
{% if confirm_link != "" %}
Confirm your subscription: {{ confirm_link }}
{% endif %}`
)

// Templates are the Liquid sources for one message.
type Templates struct {
	Subject string
	HTML    string
	Text    string
}

// DefaultConfirmation is the built-in confirmation message.
var DefaultConfirmation = Templates{
	Subject: confirmationSubject,
	HTML:    confirmationHTML,
	Text:    confirmationText,
}

// Composer renders confirmation messages. Templates are parsed once at
// construction.
type Composer struct {
	from       domain.SubscriberEmail
	confirmURL string
	subject    *liquid.Template
	html       *liquid.Template
	text       *liquid.Template
}

// NewComposer parses tpl. confirmURL may be empty, in which case messages
// carry no confirmation link.
func NewComposer(from domain.SubscriberEmail, confirmURL string, tpl Templates) (*Composer, error) {
	if from.IsZero() {
		return nil, fmt.Errorf("composer: sender address is required")
	}
	engine := liquid.NewEngine()

	parse := func(name, src string) (*liquid.Template, error) {
		t, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("composer: parse %s template: %w", name, err)
		}
		return t, nil
	}

	c := &Composer{from: from, confirmURL: confirmURL}
	var err error
	if c.subject, err = parse("subject", tpl.Subject); err != nil {
		return nil, err
	}
	if c.html, err = parse("html", tpl.HTML); err != nil {
		return nil, err
	}
	if c.text, err = parse("text", tpl.Text); err != nil {
		return nil, err
	}
	return c, nil
}

// Compose renders the confirmation message for s.
func (c *Composer) Compose(s *domain.Subscription) (*Message, error) {
	bindings := map[string]interface{}{
		"name":         s.Subscriber.Name.String(),
		"email":        s.Subscriber.Email.String(),
		"confirm_link": c.confirmLink(s.ID),
	}

	subject, err := c.subject.RenderString(singleLine(bindings))
	if err != nil {
		return nil, fmt.Errorf("composer: render subject: %w", err)
	}
	html, err := c.html.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("composer: render html: %w", err)
	}
	text, err := c.text.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("composer: render text: %w", err)
	}

	return &Message{
		From:     c.from.String(),
		To:       s.Subscriber.Email.String(),
		Subject:  strings.TrimSpace(subject),
		HTMLBody: html,
		TextBody: text,
		Tag:      "subscription-confirmation",
	}, nil
}

// singleLine copies bindings with control characters in string values
// replaced by spaces, so a subject always renders as one line.
func singleLine(bindings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(bindings))
	for k, v := range bindings {
		if str, ok := v.(string); ok {
			v = strings.Map(func(r rune) rune {
				if unicode.IsControl(r) {
					return ' '
				}
				return r
			}, str)
		}
		out[k] = v
	}
	return out
}

func (c *Composer) confirmLink(id string) string {
	if c.confirmURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(c.confirmURL, "?") {
		sep = "&"
	}
	return c.confirmURL + sep + strictform.EncodePairs([]strictform.TextPair{{Key: "subscription_id", Value: id}})
}
