package markdown

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/adrg/frontmatter"

	"github.com/municipio/pagecms/pkg/interfaces"
)

// ParseFrontMatter extracts metadata and Markdown body content from the
// provided source bytes. It returns the structured frontmatter, the Markdown
// body without delimiters, and any error encountered.
func ParseFrontMatter(source []byte) (interfaces.FrontMatter, []byte, error) {
	var meta frontMatterEnvelope

	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return interfaces.FrontMatter{}, nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	return envelopeToFrontMatter(meta), body, nil
}

// BuildDocument assembles an interfaces.Document from the supplied file path,
// language, raw content, and modification time. BodyHTML is left empty so
// callers can render lazily. A language declared in the front matter wins over
// the one detected from the path.
func BuildDocument(path string, language string, source []byte, modified time.Time) (*interfaces.Document, error) {
	fm, body, err := ParseFrontMatter(source)
	if err != nil {
		return nil, err
	}
	if declared := strings.TrimSpace(fm.Language); declared != "" {
		language = declared
	}

	return &interfaces.Document{
		FilePath:     path,
		Language:     strings.ToLower(language),
		FrontMatter:  fm,
		Body:         body,
		LastModified: modified,
	}, nil
}

type frontMatterEnvelope struct {
	Title    string                     `yaml:"title"`
	Slug     string                     `yaml:"slug"`
	Language string                     `yaml:"language"`
	Template string                     `yaml:"template"`
	Status   string                     `yaml:"status"`
	Meta     interfaces.FrontMatterMeta `yaml:"meta"`
	Custom   map[string]any             `yaml:",inline"`
}

func envelopeToFrontMatter(env frontMatterEnvelope) interfaces.FrontMatter {
	raw := make(map[string]any, len(env.Custom)+6)
	maps.Copy(raw, env.Custom)

	setIfPresent(raw, "title", env.Title)
	setIfPresent(raw, "slug", env.Slug)
	setIfPresent(raw, "language", env.Language)
	setIfPresent(raw, "template", env.Template)
	setIfPresent(raw, "status", env.Status)
	if !env.Meta.IsZero() {
		raw["meta"] = env.Meta
	}

	custom := map[string]any{}
	maps.Copy(custom, env.Custom)

	return interfaces.FrontMatter{
		Title:    strings.TrimSpace(env.Title),
		Slug:     strings.TrimSpace(env.Slug),
		Language: strings.TrimSpace(env.Language),
		Template: strings.TrimSpace(env.Template),
		Status:   strings.TrimSpace(env.Status),
		Meta:     env.Meta,
		Custom:   custom,
		Raw:      raw,
	}
}

func setIfPresent(target map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		target[key] = value
	}
}
