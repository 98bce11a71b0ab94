package notify

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
)

const deletionSubject = "Confirm your account deletion"

var deletionHTML = htmltemplate.Must(htmltemplate.New("deletion_html").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Confirm account deletion</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 480px; margin: 0 auto; padding: 20px; text-align: center;">
		<h1 style="color: #c0392b;">Delete your account?</h1>
		<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
		<p>We received a request to permanently delete your account and all of its data.</p>
		<div style="margin: 30px 0;">
			<a href="{{.Link}}" style="background-color: #c0392b; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Delete my account</a>
		</div>
		<p>Or copy and paste this link into your browser:</p>
		<p style="word-break: break-all; color: #666;">{{.Link}}</p>
		<p>This link expires {{.Expires}} and can be used once.</p>
		<p>If you did not ask for this, ignore this email. Nothing will change.</p>
		<hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
		<p style="color: #999; font-size: 12px;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`))

var deletionText = texttemplate.Must(texttemplate.New("deletion_text").Parse(`Hello{{if .Name}} {{.Name}}{{end}},

We received a request to permanently delete your account and all of its data.

Confirm the deletion here:
{{.Link}}

This link expires {{.Expires}} and can be used once.
If you did not ask for this, ignore this email. Nothing will change.
`))

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

func RenderDeletion(msg auth.DeletionEmail) (Message, error) {
	data := struct {
		Name    string
		Link    string
		Expires string
	}{
		Name:    msg.Name,
		Link:    msg.Link,
		Expires: msg.ExpiresAt.UTC().Format(time.RFC1123),
	}

	var html, text strings.Builder
	if err := deletionHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := deletionText.Execute(&text, data); err != nil {
		return Message{}, err
	}

	return Message{
		To:      msg.To,
		Subject: deletionSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
