package mailservice

import (
	"bytes"
	"sync"
	"time"

	"github.com/go-mail/mail/v2"
)

// Mailer delivers a rendered template to a single recipient.
type Mailer interface {
	send(recipient string, data any, templateFile string) error
}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error)
}

// Mail is the SMTP-backed Mailer. The mutex keeps a single dialer connection
// from being shared by concurrent consumer goroutines.
type Mail struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	sender string
}

func NewMailer(host string, port int, username, password, sender string, tp *Template) *Mail {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return &Mail{
		dialer: dialer,
		sender: sender,
		parser: tp,
	}
}

// send renders the named template and delivers it as a multipart message
// with plain-text and HTML alternatives.
func (m *Mail) send(recipient string, data any, templateFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	subject, plainBody, htmlBody, err := m.parser.ParseTemplate(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/plain", plainBody.String())
	msg.AddAlternative("text/html", htmlBody.String())

	return m.dialer.DialAndSend(msg)
}
