// Package prompt holds the versioned prompt templates and the response decoder.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template is a versioned prompt with required parameters and the fields a
// response to it must carry.
type Template struct {
	Name        string
	Version     string
	Description string
	Required    []string
	Expected    []string

	tmpl *template.Template
}

func mustTemplate(name, version, description string, required, expected []string) *Template {
	text, err := templateFS.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		panic(fmt.Sprintf("prompt: missing template %s: %v", name, err))
	}
	tmpl := template.Must(template.New(name).Option("missingkey=error").Parse(string(text)))
	return &Template{
		Name:        name,
		Version:     version,
		Description: description,
		Required:    required,
		Expected:    expected,
		tmpl:        tmpl,
	}
}

// Params are template parameters.
type Params map[string]any

// Render fills the template. Every required parameter must be present.
func (t *Template) Render(params Params) (string, error) {
	var missing []string
	for _, p := range t.Required {
		if _, ok := params[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s: missing required parameters: %s", t.Name, strings.Join(missing, ", "))
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, map[string]any(params)); err != nil {
		return "", fmt.Errorf("prompt %s: %w", t.Name, err)
	}
	return b.String(), nil
}

// MustRender is Render for templates without parameters.
func (t *Template) MustRender() string {
	s, err := t.Render(Params{})
	if err != nil {
		panic(err)
	}
	return s
}
