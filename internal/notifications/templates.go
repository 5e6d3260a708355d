package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type message struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

const htmlLayoutStart = `<!DOCTYPE html><html lang="fr"><body style="font-family:Arial,sans-serif;color:#1f2937;max-width:600px;margin:0 auto;padding:24px">`
const htmlLayoutEnd = `<p style="color:#6b7280;font-size:12px;margin-top:32px">{{.AppName}}</p></body></html>`

const eventBlockHTML = `<table style="margin:16px 0;border-collapse:collapse">
<tr><td style="padding:4px 12px 4px 0"><strong>Événement</strong></td><td>{{.EventTitle}}</td></tr>
<tr><td style="padding:4px 12px 4px 0"><strong>Date</strong></td><td>{{.EventDate}}{{if .EventTime}} - {{.EventTime}}{{end}}</td></tr>
{{if .EventLocation}}<tr><td style="padding:4px 12px 4px 0"><strong>Lieu</strong></td><td>{{.EventLocation}}</td></tr>{{end}}
</table>`

const eventBlockText = `Événement : {{.EventTitle}}
Date : {{.EventDate}}{{if .EventTime}} - {{.EventTime}}{{end}}
{{if .EventLocation}}Lieu : {{.EventLocation}}
{{end}}`

var messages = map[Kind]message{
	KindUserConfirmRequest: newMessage(
		`Confirmez votre inscription : {{.EventTitle}}`,
		`<h2>Bonjour {{.FirstName}},</h2>
<p>Merci pour votre inscription. Pour la finaliser, merci de confirmer votre adresse email.</p>`+eventBlockHTML+`
<p><a href="{{.Link}}" style="display:inline-block;background:#2563eb;color:#fff;padding:12px 20px;border-radius:6px;text-decoration:none">Confirmer mon email</a></p>
<p>Ce lien est valable 24 heures. Une fois votre email confirmé, notre équipe validera votre inscription.</p>`,
		`Bonjour {{.FirstName}},

Merci pour votre inscription. Pour la finaliser, merci de confirmer votre adresse email.

`+eventBlockText+`
Confirmer mon email : {{.Link}}

Ce lien est valable 24 heures. Une fois votre email confirmé, notre équipe validera votre inscription.
`),
	KindAdminReviewRequest: newMessage(
		`Nouvelle inscription à valider : {{.EventTitle}}`,
		`<h2>Nouvelle inscription confirmée par email</h2>
<p>{{.FirstName}} {{.LastName}} a confirmé son adresse email et attend votre validation.</p>
<ul><li>Email : {{.Email}}</li><li>Téléphone : {{.Phone}}</li>{{if .Message}}<li>Message : {{.Message}}</li>{{end}}</ul>`+eventBlockHTML+`
<p><a href="{{.Link}}">Ouvrir le tableau de bord</a></p>`,
		`Nouvelle inscription confirmée par email

{{.FirstName}} {{.LastName}} a confirmé son adresse email et attend votre validation.
Email : {{.Email}}
Téléphone : {{.Phone}}
{{if .Message}}Message : {{.Message}}
{{end}}
`+eventBlockText+`
Tableau de bord : {{.Link}}
`),
	KindUserFinalConfirmation: newMessage(
		`Votre inscription est confirmée : {{.EventTitle}}`,
		`<h2>Bonjour {{.FirstName}},</h2>
<p>Bonne nouvelle : votre inscription a été validée par notre équipe.</p>`+eventBlockHTML+`
<p>Nous avons hâte de vous accueillir !</p>`,
		`Bonjour {{.FirstName}},

Bonne nouvelle : votre inscription a été validée par notre équipe.

`+eventBlockText+`
Nous avons hâte de vous accueillir !
`),
}

func newMessage(subject, html, text string) message {
	return message{
		subject: texttemplate.Must(texttemplate.New("subject").Parse(subject)),
		html:    htmltemplate.Must(htmltemplate.New("html").Parse(htmlLayoutStart + html + htmlLayoutEnd)),
		text:    texttemplate.Must(texttemplate.New("text").Parse(text + "\n-- \n{{.AppName}}\n")),
	}
}

// Render builds the subject and both bodies of a notification.
func Render(kind Kind, data Data) (subject, html, text string, err error) {
	m, ok := messages[kind]
	if !ok {
		return "", "", "", fmt.Errorf("unknown notification kind %q", kind)
	}
	var buf bytes.Buffer
	if err := m.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	subject = buf.String()
	buf.Reset()
	if err := m.html.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	html = buf.String()
	buf.Reset()
	if err := m.text.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	return subject, html, buf.String(), nil
}
