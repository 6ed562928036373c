package mail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(
		`Hello {{.Firstname}},

Thank you for signing up to {{.AppName}}. Your verification code is: {{.Secret}}

Enter the code at {{.Origin}}/verify to activate your account. It expires in {{.Validity}}.
`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`Hello {{.Firstname}},

Your reset code is: {{.Secret}}

Enter the code at {{.Origin}}/reset-password to choose a new password. It expires in {{.Validity}}.
If you did not ask for a password reset you can ignore this message.
`))
)

type Templates struct {
	AppName string
	Origin  string
}

type templateData struct {
	AppName   string
	Origin    string
	Firstname string
	Secret    string
	Validity  string
}

func (t Templates) Verification(to string, firstname string, secret string, validity string) (Message, error) {
	return t.render(verificationTmpl, t.AppName+" account verification", to, firstname, secret, validity)
}

func (t Templates) PasswordReset(to string, firstname string, secret string, validity string) (Message, error) {
	return t.render(resetTmpl, t.AppName+" password reset", to, firstname, secret, validity)
}

func (t Templates) render(tmpl *template.Template, subject string, to string, firstname string, secret string, validity string) (Message, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, templateData{
		AppName:   t.AppName,
		Origin:    strings.TrimSuffix(t.Origin, "/"),
		Firstname: firstname,
		Secret:    secret,
		Validity:  validity,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s mail: %w", tmpl.Name(), err)
	}
	return Message{To: to, Subject: strings.TrimSpace(subject), Text: buf.String()}, nil
}
