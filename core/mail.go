package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/eduflow/stms/fs"
)

var (
	textTemplates *texttmpl.Template
	htmlTemplates *htmltmpl.Template
	tmplInit      sync.Once
	tmplInitErr   error
)

type (
	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent from BodyStr or the embedded
// "assets/templates/email" templates named "<TemplateName>.txt" / ".gohtml".
func (m *EmailMessage) Render(frontendBaseURL string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(parseTemplates) // only executed once on first send
	if tmplInitErr != nil {
		return tmplInitErr
	}

	data := ContextData{FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}

	var txt bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&txt, m.TemplateName+".txt", data); err != nil {
		return errors.Wrap(err, "rendering text template")
	}
	m.TextContent = txt.String()

	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, m.TemplateName+".gohtml", data); err != nil {
		return errors.Wrap(err, "rendering HTML template")
	}
	m.HTMLContent = html.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func (m *EmailMessage) JoinedRecipients() string {
	toJoin := make([]string, 0, len(m.To))
	for _, a := range m.To {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

func parseTemplates() {
	textTemplates, tmplInitErr = texttmpl.ParseFS(appfs.FS, "assets/templates/email/*.txt")
	if tmplInitErr != nil {
		tmplInitErr = errors.Wrap(tmplInitErr, "parsing text email templates")
		return
	}
	htmlTemplates, tmplInitErr = htmltmpl.ParseFS(appfs.FS, "assets/templates/email/*.gohtml")
	if tmplInitErr != nil {
		tmplInitErr = errors.Wrap(tmplInitErr, "parsing HTML email templates")
	}
}
