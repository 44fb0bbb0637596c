// Package messaging renders outbound SMS message bodies from templates.
package messaging

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template keys known to the renderer.
const (
	TemplateMissedCallNotice = "missed_call_notice"
)

// NoticeVars are the variables available to notice templates.
type NoticeVars struct {
	BusinessName string
	OwnerName    string
	CallerPhone  string
}

// Renderer renders message bodies. Clients may carry a template override;
// when absent the embedded default for the key is used.
type Renderer struct {
	defaults *template.Template
}

// NewRenderer parses the embedded default templates.
func NewRenderer() (*Renderer, error) {
	defaults, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse message templates: %w", err)
	}
	return &Renderer{defaults: defaults}, nil
}

// Render produces the message body for a template key. A non-empty override
// is compiled and used instead of the embedded default; an override that
// fails to compile falls back to the default rather than blocking the send.
func (r *Renderer) Render(key string, override string, vars NoticeVars) (string, error) {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		if body, err := renderOverride(trimmed, vars); err == nil {
			return body, nil
		}
	}

	var buf bytes.Buffer
	if err := r.defaults.ExecuteTemplate(&buf, key+".tmpl", vars); err != nil {
		return "", fmt.Errorf("render template %q: %w", key, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func renderOverride(override string, vars NoticeVars) (string, error) {
	tmpl, err := template.New("override").Parse(override)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
