package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultLogSize bounds the in-memory delivery log.
const DefaultLogSize = 1000

// Manager renders templates, hands messages to the channel senders and
// remembers the most recent attempts. Oldest entries are evicted first.
type Manager struct {
	email     EmailSender
	whatsapp  WhatsAppSender
	templates *TemplateEngine
	logger    zerolog.Logger
	now       func() time.Time

	mu  sync.Mutex // guards mutation of logged notifications
	log *lru.Cache[string, *Notification]
}

func NewManager(email EmailSender, whatsapp WhatsAppSender, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	return newManager(email, whatsapp, tpl, DefaultLogSize, logger)
}

func newManager(email EmailSender, whatsapp WhatsAppSender, tpl *TemplateEngine, size int, logger zerolog.Logger) *Manager {
	if size <= 0 {
		size = DefaultLogSize
	}
	log, _ := lru.New[string, *Notification](size)
	return &Manager{
		email:     email,
		whatsapp:  whatsapp,
		templates: tpl,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	switch n.Channel {
	case ChannelEmail:
		return m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelWhatsApp:
		return m.whatsapp.SendWhatsApp(ctx, n.Recipient, n.Body)
	}
	return fmt.Errorf("unsupported channel %q", n.Channel)
}

// attempt sends n and records the outcome on it. Callers hold no lock.
func (m *Manager) attempt(ctx context.Context, n *Notification) error {
	err := m.deliver(ctx, n)

	m.mu.Lock()
	defer m.mu.Unlock()
	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		m.logger.Warn().Err(err).
			Str("notification_id", n.ID).
			Str("channel", string(n.Channel)).
			Str("template", n.TemplateID).
			Int("attempts", n.Attempts).
			Msg("notification failed")
		return err
	}
	sentAt := m.now()
	n.Status, n.Error, n.SentAt = StatusSent, "", &sentAt
	return nil
}

// Send delivers n, assigning its id and timestamps, and logs the attempt.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = m.now()
	n.Status = StatusPending
	m.log.Add(n.ID, n)
	return m.attempt(ctx, n)
}

// SendFromTemplate renders templateID with data and sends it to recipient on
// the template's channel.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	msg, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		Channel:      msg.Channel,
		Recipient:    recipient,
		Subject:      msg.Subject,
		Body:         msg.Body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	return n, m.Send(ctx, n)
}

// Get returns a snapshot of the logged notification.
func (m *Manager) Get(id string) (Notification, error) {
	n, ok := m.log.Peek(id)
	if !ok {
		return Notification{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return *n, nil
}

// List returns snapshots newest first. An empty recipient lists everything.
func (m *Manager) List(recipient string) []Notification {
	keys := m.log.Keys()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		n, ok := m.log.Peek(keys[i])
		if !ok || (recipient != "" && n.Recipient != recipient) {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (Notification, error) {
	n, ok := m.log.Peek(id)
	if !ok {
		return Notification{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.mu.Lock()
	status := n.Status
	m.mu.Unlock()
	if status != StatusFailed {
		return Notification{}, fmt.Errorf("%w: %s is %s", ErrNotRetryable, id, status)
	}
	err := m.attempt(ctx, n)
	snap, _ := m.Get(id)
	return snap, err
}

// Stats counts logged notifications by status.
func (m *Manager) Stats() map[Status]int {
	stats := make(map[Status]int)
	for _, n := range m.List("") {
		stats[n.Status]++
	}
	return stats
}
