// Package template renders the prompts sent to language model collaborators.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Context holds all variables available for template resolution.
type Context struct {
	// Request variables
	Kind   string
	Model  string
	Domain string

	// Prompt-specific values, already formatted
	Vars map[string]string
}

// Render resolves template expressions in the given string.
// Uses Go's text/template syntax: {{.Domain}}, {{.Vars.columns}}.
// Returns the input unchanged if it contains no template delimiters.
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}

	return buf.String(), nil
}

// MustParse checks that tmpl parses. Prompts compiled into the binary are
// checked at init with it.
func MustParse(name, tmpl string) string {
	template.Must(template.New(name).Option("missingkey=error").Parse(tmpl))
	return tmpl
}
