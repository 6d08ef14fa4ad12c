package notification

import (
	"fmt"
	"html"
	"strings"
	"sync"
)

// Template is a named message with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Channel Channel `json:"channel"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
}

// Message is a rendered template ready to send.
type Message struct {
	Channel Channel
	Subject string
	Body    string
}

// Built-in template ids.
const (
	TplBookingConfirmation = "booking-confirmation"
	TplBookingBusiness     = "booking-business"
	TplBookingRescheduled  = "booking-rescheduled"
	TplAppointmentReminder = "appointment-reminder"
)

var builtInTemplates = []Template{
	{
		ID:      TplBookingConfirmation,
		Name:    "Cita confirmada",
		Channel: ChannelEmail,
		Subject: "✅ Cita Confirmada - {{date}} a las {{time}} - Código: {{code}}",
		Body: `<h1>✅ Cita Confirmada</h1>
<p>Hola <strong>{{client_name}}</strong>, tu cita quedó agendada.</p>
<h2>📅 Detalles de tu Cita</h2>
<ul>
<li><strong>Fecha:</strong> {{date}}</li>
<li><strong>Hora:</strong> {{time}}</li>
<li><strong>Especialista:</strong> {{specialist}}</li>
<li><strong>Servicio:</strong> {{service}}</li>
<li><strong>Código de reserva:</strong> {{code}}</li>
</ul>
<p>Guarda tu código para cancelar o reagendar.</p>
<p>📍 {{business_name}} · {{business_address}} · {{business_phone}}</p>`,
	},
	{
		ID:      TplBookingBusiness,
		Name:    "Nueva cita (negocio)",
		Channel: ChannelEmail,
		Subject: "Nueva Cita Agendada - {{client_name}} - {{date}} {{time}}",
		Body: `<h1>Nueva Cita Agendada</h1>
<ul>
<li><strong>Cliente:</strong> {{client_name}}</li>
<li><strong>Teléfono:</strong> {{client_phone}}</li>
<li><strong>Email:</strong> {{client_email}}</li>
<li><strong>Fecha:</strong> {{date}} {{time}}</li>
<li><strong>Especialista:</strong> {{specialist}}</li>
<li><strong>Servicio:</strong> {{service}}</li>
<li><strong>Código:</strong> {{code}}</li>
</ul>`,
	},
	{
		ID:      TplBookingRescheduled,
		Name:    "Cita reagendada",
		Channel: ChannelEmail,
		Subject: "🔄 Cita Reagendada - {{date}} a las {{time}} - Código: {{code}}",
		Body: `<h1>🔄 Cita Reagendada</h1>
<p>Hola <strong>{{client_name}}</strong>, tu cita del {{old_date}} a las {{old_time}} fue reagendada.</p>
<h2>📅 Nueva Cita Confirmada</h2>
<ul>
<li><strong>Fecha:</strong> {{date}}</li>
<li><strong>Hora:</strong> {{time}}</li>
<li><strong>Especialista:</strong> {{specialist}}</li>
<li><strong>Servicio:</strong> {{service}}</li>
<li><strong>Código de reserva:</strong> {{code}}</li>
</ul>
<p>📍 {{business_name}} · {{business_address}}</p>`,
	},
	{
		ID:      TplAppointmentReminder,
		Name:    "Recordatorio 24h",
		Channel: ChannelWhatsApp,
		Body: `🔔 *Recordatorio de Cita*

Hola *{{client_name}}*,

Te recordamos que tienes una cita programada para *mañana*:

📅 *Fecha:* {{date}}
⏰ *Hora:* {{time}}
👨‍⚕️ *Con:* {{specialist}}
🩺 *Servicio:* {{service}}
🎟️ *Código:* {{code}}
{{confirm_line}}
📍 {{business_address}}

¡Te esperamos! 🌟`,
	},
}

// TemplateEngine holds templates by id. Safe for concurrent use.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine returns an engine preloaded with the booking templates.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template, len(builtInTemplates))}
	for _, t := range builtInTemplates {
		e.templates[t.ID] = t
	}
	return e
}

// RegisterTemplate adds t or replaces the template with the same id.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	e.templates[t.ID] = t
	e.mu.Unlock()
}

// Render fills the template's placeholders from data. Placeholders with no
// matching key are left untouched. Email bodies are HTML, so their values
// are escaped; subjects lose line breaks.
func (e *TemplateEngine) Render(id string, data map[string]string) (Message, error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return Message{}, fmt.Errorf("template %q not found", id)
	}

	body := replacer(data, func(v string) string { return v })
	if t.Channel == ChannelEmail {
		body = replacer(data, html.EscapeString)
	}
	subject := replacer(data, singleLine)
	return Message{Channel: t.Channel, Subject: subject.Replace(t.Subject), Body: body.Replace(t.Body)}, nil
}

func replacer(data map[string]string, value func(string) string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", value(v))
	}
	return strings.NewReplacer(pairs...)
}

// singleLine folds CR and LF into spaces.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}
