// Package views holds the embedded page templates and their helper functions.
package views

import (
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/services"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// Load parses every page with the helper functions.
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs()).ParseFS(templates, "templates/*.html")
}

// Static serves the stylesheet and scripts.
func Static() http.FileSystem {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"sectionName":  func(s models.SectionType) string { return s.Info().DisplayName },
		"sectionColor": func(s models.SectionType) template.CSS { return template.CSS(s.Info().Color) },
		"statusClass":  func(s models.ApprovalStatus) string { return strings.ToLower(string(s)) },
		"mediaKind":    func(name string) string { return string(models.MediaKindOf(name)) },
		"fileURL":      FileURL,
		"fileBase":     fileBase,
		"themeClass":   themeClass,
		"logDetails":   services.FormatLogDetails,
		"detailRows":   services.DetailRows,
		"truncate":     truncate,
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
		"dict":         dict,
		"fieldError":   func(errs map[string]string, key string) string { return errs[key] },
	}
}

// FileURL is the local proxy path of an attachment.
func FileURL(name string) string {
	if name == "" {
		return ""
	}
	return "/files/view?" + url.Values{"fileName": []string{name}}.Encode()
}

func fileBase(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func themeClass(dark bool) string {
	if dark {
		return "dark"
	}
	return "light"
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			return nil, errors.New("dict keys must be strings")
		}
		m[k] = pairs[i+1]
	}
	return m, nil
}
