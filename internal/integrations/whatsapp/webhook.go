package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wa-bot/internal/domain"
)

// SignatureHeader carries the HMAC of the webhook body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrBadSignature = errors.New("whatsapp: webhook signature mismatch")
	ErrBadChallenge = errors.New("whatsapp: webhook verification rejected")
)

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type webhookMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *webhookMedia `json:"image"`
	Document *webhookMedia `json:"document"`
}

// ParseWebhook extracts the text and image messages from a webhook body.
// Status updates and unsupported message types are dropped.
func ParseWebhook(body []byte) ([]domain.IncomingMessage, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("whatsapp: decode webhook: %w", err)
	}
	var out []domain.IncomingMessage
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			if ch.Field != "" && ch.Field != "messages" {
				continue
			}
			for _, m := range ch.Value.Messages {
				if msg, ok := m.incoming(); ok {
					out = append(out, msg)
				}
			}
		}
	}
	return out, nil
}

func (m webhookMessage) incoming() (domain.IncomingMessage, bool) {
	msg := domain.IncomingMessage{ID: m.ID, From: m.From}
	switch {
	case m.Type == "text" && m.Text != nil:
		msg.Type = domain.MessageText
		msg.Text = m.Text.Body
	case m.Type == "image" && m.Image != nil:
		msg.Type = domain.MessageImage
		msg.MediaID = m.Image.ID
		msg.MimeType = m.Image.MimeType
		msg.Text = m.Image.Caption
	case m.Type == "document" && m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/"):
		msg.Type = domain.MessageImage
		msg.MediaID = m.Document.ID
		msg.MimeType = m.Document.MimeType
		msg.Filename = m.Document.Filename
		msg.Text = m.Document.Caption
	default:
		return domain.IncomingMessage{}, false
	}
	return msg, true
}

// VerifySignature checks the X-Hub-Signature-256 header against body.
// An empty secret disables the check.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return nil
	}
	got, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok {
		return ErrBadSignature
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// VerifyChallenge answers the subscription handshake: it returns the
// challenge when mode is "subscribe" and token matches.
func VerifyChallenge(verifyToken, mode, token, challenge string) (string, error) {
	if verifyToken == "" || mode != "subscribe" || !hmac.Equal([]byte(token), []byte(verifyToken)) {
		return "", ErrBadChallenge
	}
	return challenge, nil
}
