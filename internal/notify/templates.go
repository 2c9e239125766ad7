package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"wardline.app/api/internal/queue"
)

type template struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
	require []string
}

var templates = map[Kind]template{
	KindInvitation: {
		subject: texttemplate.Must(texttemplate.New("invitation_subject").Parse("You've been invited to join {{.team_name}} on Wardline")),
		text: texttemplate.Must(texttemplate.New("invitation").Parse(
			`{{.inviter}} invited you to join {{.team_name}} on Wardline.

Accept the invitation: {{.link}}

This invitation expires in 7 days. If you were not expecting it you can ignore this email.
`)),
		html: htmltemplate.Must(htmltemplate.New("invitation").Parse(
			`<p><strong>{{.inviter}}</strong> invited you to join <strong>{{.team_name}}</strong> on Wardline.</p>
<p><a href="{{.link}}">Accept the invitation</a></p>
<p>This invitation expires in 7 days. If you were not expecting it you can ignore this email.</p>`)),
		require: []string{FieldLink, FieldTeamName, FieldInviter},
	},
	KindVerification: {
		subject: texttemplate.Must(texttemplate.New("verification_subject").Parse("Verify your Wardline email")),
		text: texttemplate.Must(texttemplate.New("verification").Parse(
			`Hi {{.recipient_name}},

Confirm your email address: {{.link}}

The link is valid for 24 hours.
`)),
		html: htmltemplate.Must(htmltemplate.New("verification").Parse(
			`<p>Hi {{.recipient_name}},</p>
<p><a href="{{.link}}">Confirm your email address</a></p>
<p>The link is valid for 24 hours.</p>`)),
		require: []string{FieldLink},
	},
	KindPasswordReset: {
		subject: texttemplate.Must(texttemplate.New("password_reset_subject").Parse("Reset your Wardline password")),
		text: texttemplate.Must(texttemplate.New("password_reset").Parse(
			`Hi {{.recipient_name}},

Choose a new password: {{.link}}

The link is valid for one hour. If you did not ask for a reset, ignore this email.
`)),
		html: htmltemplate.Must(htmltemplate.New("password_reset").Parse(
			`<p>Hi {{.recipient_name}},</p>
<p><a href="{{.link}}">Choose a new password</a></p>
<p>The link is valid for one hour. If you did not ask for a reset, ignore this email.</p>`)),
		require: []string{FieldLink},
	},
}

// Render builds the email for a notification. Unknown kinds and missing
// required fields are permanent failures.
func Render(kind Kind, recipient string, payload map[string]string) (Email, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return Email{}, fmt.Errorf("%w: unknown notification kind %q", queue.ErrPermanent, kind)
	}
	for _, field := range tmpl.require {
		if payload[field] == "" {
			return Email{}, fmt.Errorf("%w: %s notification missing %s", queue.ErrPermanent, kind, field)
		}
	}

	data := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	if data[FieldRecipient] == "" {
		data[FieldRecipient] = "there"
	}

	subject, err := executeText(tmpl.subject, data)
	if err != nil {
		return Email{}, err
	}
	text, err := executeText(tmpl.text, data)
	if err != nil {
		return Email{}, err
	}

	var html bytes.Buffer
	if err := tmpl.html.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("rendering %s html: %w", kind, err)
	}

	return Email{
		To:      recipient,
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func executeText(t *texttemplate.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
