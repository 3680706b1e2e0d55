// Package markdown imports Markdown page sources into the page lifecycle. Files carry a YAML
// front matter block with the page fields and a Markdown body rendered through goldmark.
package markdown
