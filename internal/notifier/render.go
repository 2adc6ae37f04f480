package notifier

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// ErrUnknownTemplate is returned when a request names a template that was never loaded.
var ErrUnknownTemplate = errors.New("unknown email template / 未知的邮件模板")

// Renderer 把 EmailRequest.Template 与 Variables 渲染成纯文本正文。
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates. Template names are the file names without ".tmpl".
func NewRenderer() (*Renderer, error) {
	root := template.New("email").Funcs(funcMap()).Option("missingkey=zero")
	entries, err := embeddedTemplates.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read email templates: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		content, err := embeddedTemplates.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		if _, err := root.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
	}
	return &Renderer{templates: root}, nil
}

// Render returns the request with Body filled in. A request that already has a body,
// or names no template, is returned unchanged.
func (r *Renderer) Render(req EmailRequest) (EmailRequest, error) {
	if r == nil || req.Body != "" || req.Template == "" {
		return req, nil
	}
	tmpl := r.templates.Lookup(req.Template)
	if tmpl == nil {
		return req, fmt.Errorf("%w: %s", ErrUnknownTemplate, req.Template)
	}
	vars := req.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return req, fmt.Errorf("render template %s: %w", req.Template, err)
	}
	req.Body = strings.TrimSpace(buf.String()) + "\n"
	return req, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		// default returns def when val is nil or an empty string.
		"default": func(def, val any) any {
			if val == nil {
				return def
			}
			if s, ok := val.(string); ok && s == "" {
				return def
			}
			return val
		},
		"upper": strings.ToUpper,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
	}
}

// renderingService renders the body before handing the request to the next Service.
type renderingService struct {
	renderer *Renderer
	next     Service
}

// WithRendering wraps next so every delivered email carries a rendered body.
func WithRendering(renderer *Renderer, next Service) Service {
	return &renderingService{renderer: renderer, next: next}
}

func (s *renderingService) SendEmail(ctx context.Context, req EmailRequest) error {
	rendered, err := s.renderer.Render(req)
	if err != nil {
		return err
	}
	return s.next.SendEmail(ctx, rendered)
}
