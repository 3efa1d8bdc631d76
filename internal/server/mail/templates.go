package mail

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	ActivationSubject = "Activa tu cuenta"
	ResetSubject      = "Restablecer contraseña"
)

type linkData struct {
	Username string
	Link     string
}

// ActivationMessage renders the account activation mail.
func ActivationMessage(to, username, link string) (Message, error) {
	return render(to, ActivationSubject, "activation.html", linkData{Username: username, Link: link})
}

// ResetMessage renders the password reset mail.
func ResetMessage(to, username, link string) (Message, error) {
	return render(to, ResetSubject, "reset.html", linkData{Username: username, Link: link})
}

func render(to, subject, name string, data any) (Message, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: b.String()}, nil
}
