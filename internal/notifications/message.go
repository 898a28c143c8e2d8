package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Links builds the public URLs embedded in emails.
type Links struct {
	BaseURL string
}

func (l Links) Confirm(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/auth/confirmar/" + token
}

func (l Links) ResetPassword(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/auth/olvide-password/" + token
}

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "confirmation"}}<p>Hola {{.Name}}, comprueba tu cuenta en BienesRaices.com</p>
<p>Tu cuenta ya está lista, solo debes confirmarla en el siguiente enlace:
<a href="{{.Link}}">Confirmar Cuenta</a></p>
<p>Si tú no creaste esta cuenta, puedes ignorar el mensaje</p>{{end}}
{{define "password_reset"}}<p>Hola {{.Name}}, has solicitado reestablecer tu password en BienesRaices.com</p>
<p>Sigue el siguiente enlace para generar un password nuevo:
<a href="{{.Link}}">Reestablecer Password</a></p>
<p>Si tú no solicitaste el cambio de password, puedes ignorar el mensaje</p>{{end}}
`))

// Compose renders the email for kind.
func Compose(kind Kind, input AccountEmail, links Links) (Message, error) {
	var subject, link string

	switch kind {
	case KindConfirmation:
		subject = "Confirma tu Cuenta en BienesRaices.com"
		link = links.Confirm(input.Token)
	case KindPasswordReset:
		subject = "Reestablece tu Password en BienesRaices.com"
		link = links.ResetPassword(input.Token)
	default:
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}

	var html bytes.Buffer

	err := mailTemplates.ExecuteTemplate(&html, string(kind), struct {
		Name string
		Link string
	}{Name: input.Name, Link: link})
	if err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", kind, err)
	}

	return Message{
		To:      input.Email,
		Subject: subject,
		Text:    subject + ": " + link,
		HTML:    html.String(),
	}, nil
}
