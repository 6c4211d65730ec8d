// Package templates renders notification messages from the embedded YAML
// catalog.
package templates

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/internal/notification/channel"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// NameTest is the catalog key used for user-triggered test sends.
const NameTest = "notification:test"

//go:embed catalog.yaml
var defaultCatalog []byte

type entrySpec struct {
	Category string `yaml:"category"`
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`
	URL      string `yaml:"url"`
}

type catalogSpec struct {
	Templates map[string]entrySpec `yaml:"templates"`
}

type entry struct {
	category string
	title    *template.Template
	body     *template.Template
	url      *template.Template
}

// Catalog holds the parsed templates.
type Catalog struct {
	entries map[string]entry
	baseURL string
}

// Load parses the embedded catalog.
func Load(baseURL string) (*Catalog, error) {
	return Parse(defaultCatalog, baseURL)
}

// Parse builds a catalog from YAML. Every template is compiled up front.
func Parse(raw []byte, baseURL string) (*Catalog, error) {
	var spec catalogSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	c := &Catalog{entries: make(map[string]entry, len(spec.Templates)), baseURL: strings.TrimRight(baseURL, "/")}
	for name, s := range spec.Templates {
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("template %q has no title", name)
		}
		var (
			e   = entry{category: s.Category}
			err error
		)
		if e.title, err = compile(name+".title", s.Title); err != nil {
			return nil, err
		}
		if e.body, err = compile(name+".body", s.Body); err != nil {
			return nil, err
		}
		if e.url, err = compile(name+".url", s.URL); err != nil {
			return nil, err
		}
		if e.category == "" {
			e.category = "info"
		}
		c.entries[name] = e
	}
	return c, nil
}

func compile(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("compile template %s: %w", name, err)
	}
	return t, nil
}

// Has reports whether the catalog has a template for name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Render turns an event into a message using its JSON fields as template
// data. Raw events use their payload map. Events without a template get
// their name as title.
func (c *Catalog) Render(event events.Event) (channel.Message, error) {
	if untyped, ok := event.(events.Raw); ok {
		data := make(map[string]any, len(untyped.Data))
		for k, v := range untyped.Data {
			data[k] = v
		}
		return c.RenderNamed(untyped.Name, data)
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return channel.Message{}, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return channel.Message{}, fmt.Errorf("decode %s: %w", event.EventName(), err)
	}
	return c.RenderNamed(event.EventName(), data)
}

// RenderNamed renders the template called name against data.
func (c *Catalog) RenderNamed(name string, data map[string]any) (channel.Message, error) {
	msg := channel.Message{EventName: name}
	if data == nil {
		data = map[string]any{}
	}
	data["baseUrl"] = c.baseURL
	if raw, ok := data["jobId"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			msg.ResourceID = &id
		}
	}

	e, ok := c.entries[name]
	if !ok {
		msg.Title = name
		msg.Category = "info"
		return msg, nil
	}

	var err error
	if msg.Title, err = execute(e.title, data); err != nil {
		return channel.Message{}, err
	}
	if msg.Body, err = execute(e.body, data); err != nil {
		return channel.Message{}, err
	}
	if msg.URL, err = execute(e.url, data); err != nil {
		return channel.Message{}, err
	}
	msg.Category = e.category
	return msg, nil
}

func execute(t *template.Template, data map[string]any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
