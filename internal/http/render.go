package httpapi

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

// PageRenderer executes named page templates.
type PageRenderer struct {
	Templates map[string]*template.Template
}

// NewPageRenderer parses one template set per page from fsys.
func NewPageRenderer(fsys fs.FS, mapping map[string][]string) (*PageRenderer, error) {
	templates := make(map[string]*template.Template, len(mapping))
	for name, files := range mapping {
		t, err := template.ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parse templates for %s: %w", name, err)
		}
		templates[name] = t
	}
	return &PageRenderer{Templates: templates}, nil
}

// RenderTemplate writes page templateName with data.
func (r *PageRenderer) RenderTemplate(w io.Writer, templateName string, data any) error {
	t, ok := r.Templates[templateName]
	if !ok {
		return fmt.Errorf("template %q is missing", templateName)
	}
	return t.ExecuteTemplate(w, templateName, data)
}
