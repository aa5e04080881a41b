// Package templates provides the embedded installer helper scripts.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"
)

//go:embed *.tmpl
var templatesFS embed.FS

const ext = ".tmpl"

// Template represents a helper script template with metadata.
type Template struct {
	Name        string
	Description string
	Content     []byte
}

// Available templates with their descriptions.
var templateDescriptions = map[string]string{
	"update.bat": "Windows batch helper (taskkill, xcopy)",
	"update.sh":  "POSIX shell helper (pkill, cp)",
}

// List returns all available template names sorted alphabetically.
func List() []string {
	entries, err := templatesFS.ReadDir(".")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}

	sort.Strings(names)
	return names
}

// Get returns a template by name, e.g. "update.sh".
func Get(name string) (*Template, error) {
	content, err := templatesFS.ReadFile(name + ext)
	if err != nil {
		if pathErr, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("template '%s' not found: %w", name, pathErr)
		}
		return nil, fmt.Errorf("failed to read template '%s': %w", name, err)
	}

	return &Template{
		Name:        name,
		Description: templateDescriptions[name],
		Content:     content,
	}, nil
}

// GetDescription returns the description for a template.
func GetDescription(name string) string {
	if desc, ok := templateDescriptions[name]; ok {
		return desc
	}
	return "Custom template"
}

// Funcs are the quoting helpers available inside helper templates.
var Funcs = template.FuncMap{
	"sh":  ShellQuote,
	"bat": BatchEscape,
}

// Parse returns the named template compiled with Funcs.
func Parse(name string) (*template.Template, error) {
	tmpl, err := Get(name)
	if err != nil {
		return nil, err
	}
	parsed, err := template.New(name).Funcs(Funcs).Option("missingkey=error").Parse(string(tmpl.Content))
	if err != nil {
		return nil, fmt.Errorf("parse template '%s': %w", name, err)
	}
	return parsed, nil
}

// ShellQuote wraps s in single quotes for POSIX sh.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BatchEscape escapes percent signs, which cmd.exe expands even inside quotes.
func BatchEscape(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
