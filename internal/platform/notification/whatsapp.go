package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BuilderBotSender posts WhatsApp messages to a BuilderBot instance.
type BuilderBotSender struct {
	url    string
	apiKey string
	client *http.Client
}

func NewBuilderBotSender(url, apiKey string, client *http.Client) *BuilderBotSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &BuilderBotSender{url: strings.TrimSpace(url), apiKey: apiKey, client: client}
}

type builderBotPayload struct {
	Messages      builderBotContent `json:"messages"`
	Number        string            `json:"number"`
	CheckIfExists bool              `json:"checkIfExists"`
}

type builderBotContent struct {
	Content string `json:"content"`
}

func (s *BuilderBotSender) SendWhatsApp(ctx context.Context, to, body string) error {
	if s.url == "" {
		return ErrNotConfigured
	}
	number := WhatsAppNumber(to)
	if number == "" {
		return fmt.Errorf("whatsapp: invalid number %q", to)
	}

	buf, err := json.Marshal(builderBotPayload{
		Messages: builderBotContent{Content: body},
		Number:   number,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-builderbot", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// WhatsAppNumber strips non-digits and prefixes Mexican 10-digit numbers
// with the 52 country code.
func WhatsAppNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		return "52" + digits
	}
	return digits
}
