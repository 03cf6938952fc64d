package nodeconfig

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed templates/worker_config.yaml.tmpl
var templateFS embed.FS

const defaultTemplateName = "worker_config"

// Template is a parsed configuration document template. Bindings missing
// from a node (e.g. ParentID for the coordinator) fail the render instead
// of printing "<no value>".
type Template struct {
	name string
	tmpl *template.Template
}

// Name returns the template's name, used in error messages
func (t *Template) Name() string {
	return t.name
}

// ParseTemplate parses text as a document template
func ParseTemplate(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// ParseTemplateFile reads and parses a template from disk
func ParseTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(filepath.Base(path), string(data))
}

// DefaultTemplate returns the built-in worker configuration template
func DefaultTemplate() *Template {
	data, err := templateFS.ReadFile("templates/worker_config.yaml.tmpl")
	if err != nil {
		panic(fmt.Sprintf("embedded template missing: %v", err))
	}
	t, err := ParseTemplate(defaultTemplateName, string(data))
	if err != nil {
		panic(err)
	}
	return t
}
