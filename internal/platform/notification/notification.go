// Package notification delivers document lifecycle messages to patients over
// email and SMS. Deliveries are rendered from a template catalog and kept in
// an in-memory log so operators can inspect and redeliver failures.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotFailed       = errors.New("message is not in failed state")
)

// Channel is the delivery transport for a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Delivery states.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Message is one outbound notification.
type Message struct {
	ID          string            `json:"id"`
	Channel     Channel           `json:"channel"`
	Recipient   string            `json:"recipient"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body"`
	TemplateID  string            `json:"template_id,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// EmailSender delivers a rendered message over email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a rendered message over SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Dispatcher renders templates, pushes messages through the channel senders,
// and records every attempt.
type Dispatcher struct {
	email   EmailSender
	sms     SMSSender
	catalog *Catalog

	mu  sync.RWMutex
	log map[string]*Message
}

// NewDispatcher wires the channel senders to the template catalog.
func NewDispatcher(email EmailSender, sms SMSSender, catalog *Catalog) *Dispatcher {
	return &Dispatcher{
		email:   email,
		sms:     sms,
		catalog: catalog,
		log:     make(map[string]*Message),
	}
}

// Deliver sends the message on its channel and records the outcome. The
// message is logged whether or not delivery succeeds.
func (d *Dispatcher) Deliver(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	m.Status = StatusPending

	err := d.push(ctx, m)
	d.record(m, err)
	return err
}

// DeliverTemplate renders a catalog template and delivers the result.
func (d *Dispatcher) DeliverTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Message, error) {
	tpl, ok := d.catalog.Lookup(templateID)
	if !ok {
		return nil, fmt.Errorf("template %q not found", templateID)
	}
	subject, body := tpl.Render(data)

	m := &Message{
		Channel:    tpl.Channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := d.Deliver(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// Get returns a logged message by ID.
func (d *Dispatcher) Get(id string) (*Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.log[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrMessageNotFound)
	}
	return m, nil
}

// ListByRecipient returns up to limit logged messages for a recipient.
func (d *Dispatcher) ListByRecipient(recipient string, limit int) []*Message {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Message
	for _, m := range d.log {
		if m.Recipient != recipient {
			continue
		}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Redeliver retries a failed message on its original channel.
func (d *Dispatcher) Redeliver(ctx context.Context, id string) error {
	d.mu.RLock()
	m, ok := d.log[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("message %s: %w", id, ErrMessageNotFound)
	}
	if m.Status != StatusFailed {
		return fmt.Errorf("message %s is %s: %w", id, m.Status, ErrNotFailed)
	}

	err := d.push(ctx, m)
	d.record(m, err)
	return err
}

// Stats counts logged messages by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, m := range d.log {
		stats[m.Status]++
	}
	return stats
}

func (d *Dispatcher) push(ctx context.Context, m *Message) error {
	switch m.Channel {
	case ChannelEmail:
		return d.email.SendEmail(ctx, m.Recipient, m.Subject, m.Body)
	case ChannelSMS:
		return d.sms.SendSMS(ctx, m.Recipient, m.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", m.Channel)
	}
}

func (d *Dispatcher) record(m *Message, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		m.Status = StatusFailed
		m.Error = err.Error()
	} else {
		m.Status = StatusDelivered
		at := time.Now().UTC()
		m.DeliveredAt = &at
		m.Error = ""
	}
	d.log[m.ID] = m
}
