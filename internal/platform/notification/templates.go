package notification

import (
	"strings"
	"sync"
)

// Template is one reusable message body with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject,omitempty"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// Render fills the template's placeholders from data. Placeholders with no
// matching key are left as-is so missing data stays visible in the output.
func (t *Template) Render(data map[string]string) (subject, body string) {
	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body
}

// Catalog holds the registered message templates.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewCatalog returns a Catalog with the built-in document lifecycle templates
// registered.
func NewCatalog() *Catalog {
	c := &Catalog{templates: make(map[string]*Template)}
	for _, t := range builtInTemplates() {
		c.Register(t)
	}
	return c
}

// Register adds or replaces a template.
func (c *Catalog) Register(t Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[t.ID] = &t
}

// Lookup returns a template by ID.
func (c *Catalog) Lookup(id string) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	return t, ok
}

func builtInTemplates() []Template {
	return []Template{
		{
			ID:      "document-ready",
			Name:    "Document Ready",
			Subject: "A new {{document_type}} from your doctor",
			Body:    "Dear {{patient_name}}, your doctor has sent you a new document: {{document_title}}. Please log in to view it.",
			Channel: ChannelEmail,
		},
		{
			ID:      "document-ready-sms",
			Name:    "Document Ready (SMS)",
			Body:    "New medical document available: {{document_title}}. Log in to view it.",
			Channel: ChannelSMS,
		},
		{
			ID:      "document-expiring",
			Name:    "Document Expiring",
			Subject: "Your {{document_type}} expires soon",
			Body:    "Dear {{patient_name}}, your document {{document_title}} expires on {{expires_at}}. Download it before then if you need a copy.",
			Channel: ChannelEmail,
		},
		{
			ID:      "welcome-patient",
			Name:    "Welcome Patient",
			Subject: "Welcome to the patient portal",
			Body:    "Dear {{patient_name}}, your account is ready. Documents from your doctor will appear in your portal.",
			Channel: ChannelEmail,
		},
	}
}
