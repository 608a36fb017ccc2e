package fakebackend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/resend/resend-go/v2"
)

// DefaultFrom is the sender of every message.
const DefaultFrom = "Gestion Local <onboarding@resend.dev>"

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Outbox keeps every message in memory.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	o.msgs = append(o.msgs, msg)
	o.mu.Unlock()
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

// Last returns the newest message sent to addr.
func (o *Outbox) Last(addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if strings.EqualFold(o.msgs[i].To, addr) {
			return o.msgs[i], true
		}
	}
	return Message{}, false
}

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer returns a mailer for apiKey. An empty from selects
// DefaultFrom.
func NewResendMailer(apiKey, from string) (*ResendMailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("fakebackend: resend api key is required")
	}
	if from == "" {
		from = DefaultFrom
	}
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}, nil
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

var (
	pinTemplate = template.Must(template.New("pin").Parse(`<div style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
<div style="max-width: 500px; margin: 0 auto; background-color: #ffffff; border-top: 6px solid #214382;">
<h1>Gestión Local Teocrática</h1>
<p>Congregación {{.Congregacion}}</p>
<p>Usted solicitó este código para comprobar la identidad de su cuenta:</p>
<p><b>{{.Username}}</b></p>
<h2 style="letter-spacing: 8px; font-family: monospace;">{{.Pin}}</h2>
<p>Si usted no solicitó esto, por seguridad cambie su contraseña.</p>
</div>
</div>`))

	usernameTemplate = template.Must(template.New("username").Parse(`<div style="font-family: sans-serif; background-color: #f5f5f5; padding: 20px;">
<h2>DATOS DE ACCESO</h2>
<p>Aquí tienes la información solicitada para <b>{{.Congregacion}}</b>:</p>
<p><b>Usuario:</b> {{.Username}}</p>
<p><b>ID Usuario:</b> {{.PersonaID}}</p>
<p><b>Congregación:</b> {{.Numero}}</p>
<p>Por seguridad, elimine este correo una vez memorizados los datos.</p>
</div>`))

	broadcastTemplate = template.Must(template.New("broadcast").Parse(`<div style="font-family: 'Segoe UI', sans-serif; background-color: #f4f7f9; padding: 30px;">
<h1>Aviso de Seguridad</h1>
<p>Congregación {{.Congregacion}}</p>
<p>Hola, hermano/a <b>{{.Nombre}}</b>:</p>
<p>Le informamos sobre una nueva actualización importante en los recordatorios de seguridad:</p>
<h2>{{.Titulo}}</h2>
<div>{{range $i, $line := .Lineas}}{{if $i}}<br/>{{end}}{{$line}}{{end}}</div>
<p>Para ver más detalles, por favor ingrese al sitio y consulte la sección <b>Administración de Cuenta</b>.</p>
<p>Revisión: {{.Fecha}} | Destinatario: {{.Username}} ({{.Congregacion}})</p>
<p>AVISO: No responda a este mensaje. Esta casilla de correo es automática y no es monitoreada.</p>
</div>`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
