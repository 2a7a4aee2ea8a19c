package mailservice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*
var templateFS embed.FS

// Template parses email templates out of the embedded filesystem.
type Template struct{}

func NewTemplate() *Template {
	return &Template{}
}

// ParseTemplate renders the subject, plainBody and htmlBody blocks of the
// named template file with the given data.
func (tp *Template) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	t, err := template.New("email").ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not parse template: %w", err)
	}

	subject := new(bytes.Buffer)
	if err := t.ExecuteTemplate(subject, "subject", data); err != nil {
		return nil, nil, nil, err
	}

	plainBody := new(bytes.Buffer)
	if err := t.ExecuteTemplate(plainBody, "plainBody", data); err != nil {
		return nil, nil, nil, err
	}

	htmlBody := new(bytes.Buffer)
	if err := t.ExecuteTemplate(htmlBody, "htmlBody", data); err != nil {
		return nil, nil, nil, err
	}

	return subject, plainBody, htmlBody, nil
}
