package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Events raised through HX-Trigger. app.js listens for show-notification;
// the others let pages refresh dependent widgets.
const (
	EventLeadCreated      = "lead-created"
	EventProposalUpdated  = "proposal-updated"
	EventCommissionPaid   = "commission-paid"
	EventShowNotification = "show-notification"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// HTMXResponseBuilder collects the status, htmx headers and fragment of one
// response and writes them in the right order.
type HTMXResponseBuilder struct {
	status   int
	triggers map[string]any
	redirect string
	body     []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{status: http.StatusOK, triggers: map[string]any{}}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger adds an event to HX-Trigger. Adding the same name twice keeps the last payload.
func (b *HTMXResponseBuilder) Trigger(name string, detail any) *HTMXResponseBuilder {
	b.triggers[name] = detail
	return b
}

func (b *HTMXResponseBuilder) TriggerLeadCreated(leadID string) *HTMXResponseBuilder {
	return b.Trigger(EventLeadCreated, map[string]string{"id": leadID})
}

func (b *HTMXResponseBuilder) TriggerProposalUpdated(id, status string) *HTMXResponseBuilder {
	return b.Trigger(EventProposalUpdated, map[string]string{"id": id, "status": status})
}

func (b *HTMXResponseBuilder) TriggerCommissionPaid(id string) *HTMXResponseBuilder {
	return b.Trigger(EventCommissionPaid, map[string]string{"id": id})
}

// Notify shows a toast. Errors stay on screen longer.
func (b *HTMXResponseBuilder) Notify(kind NotificationType, message string) *HTMXResponseBuilder {
	duration := 3000
	if kind == NotificationError {
		duration = 5000
	}
	return b.Trigger(EventShowNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": duration,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.Notify(NotificationSuccess, message)
}

// Redirect makes htmx navigate the whole page instead of swapping.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	b.redirect = url
	return b
}

// HTML sets an already rendered fragment as the body.
func (b *HTMXResponseBuilder) HTML(body []byte) *HTMXResponseBuilder {
	b.body = body
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	if b.redirect != "" {
		h.Set("HX-Redirect", b.redirect)
	}
	if len(b.triggers) > 0 {
		if encoded, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(encoded))
		}
	}
	if len(b.body) > 0 {
		h.Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse is an alert fragment for htmx targets. The message is escaped.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		HTML([]byte(`<div class="alert alert-error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
