package sms

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultCatalog []byte

// Template keys present in every catalog.
const (
	KeyAcknowledgement = "acknowledgement"
	KeyConfirmation    = "confirmation"
	KeyLock            = "lock"
	KeyUnlock          = "unlock"
	KeyBirthday        = "birthday"
	KeyVerseSmall      = "verse_small"
	KeyVerseMedium     = "verse_medium"
	KeyVerseLarge      = "verse_large"
)

var requiredKeys = []string{
	KeyAcknowledgement, KeyConfirmation, KeyLock, KeyUnlock,
	KeyBirthday, KeyVerseSmall, KeyVerseMedium, KeyVerseLarge,
}

// verseLabel counts toward the inline limit of verse templates.
const verseLabel = "verse "

// Fields are the values a template may reference.
type Fields struct {
	Name     string
	Cohort   string
	Session  string
	CallerID string
	Phone    string
	Date     string
	Verse    string
}

// Template is one registered message. LongBody, when set, is used for verses too long
// to read naturally inline.
type Template struct {
	SenderID    string `yaml:"sender"`
	TemplateID  string `yaml:"template_id"`
	Body        string `yaml:"body"`
	LongBody    string `yaml:"long_body"`
	InlineLimit int    `yaml:"inline_limit"`

	body     *template.Template
	longBody *template.Template
}

// Catalog is the set of registered templates keyed by name.
type Catalog struct {
	templates map[string]*Template
}

// DefaultCatalog parses the embedded templates.yaml.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a YAML catalog and compiles every body.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("sms: template catalog is empty")
	}
	raw := map[string]*Template{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sms: decode template catalog: %w", err)
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("sms: template %q is missing", key)
		}
	}
	for key, t := range raw {
		if t == nil || strings.TrimSpace(t.Body) == "" || t.SenderID == "" || t.TemplateID == "" {
			return nil, fmt.Errorf("sms: template %q needs sender, template_id and body", key)
		}
		var err error
		if t.body, err = template.New(key).Parse(t.Body); err != nil {
			return nil, fmt.Errorf("sms: parse template %q: %w", key, err)
		}
		if t.LongBody != "" {
			if t.longBody, err = template.New(key + "_long").Parse(t.LongBody); err != nil {
				return nil, fmt.Errorf("sms: parse template %q long body: %w", key, err)
			}
		}
	}
	return &Catalog{templates: raw}, nil
}

// Render fills the named template.
func (c *Catalog) Render(key string, f Fields) (Message, error) {
	t, ok := c.templates[key]
	if !ok {
		return Message{}, fmt.Errorf("sms: unknown template %q", key)
	}
	tmpl := t.body
	if t.longBody != nil && utf8.RuneCountInString(f.Verse)+len(verseLabel) > t.InlineLimit {
		tmpl = t.longBody
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, f); err != nil {
		return Message{}, fmt.Errorf("sms: render template %q: %w", key, err)
	}
	return Message{SenderID: t.SenderID, TemplateID: t.TemplateID, Text: buf.String()}, nil
}
