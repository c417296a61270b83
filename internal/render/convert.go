package render

import (
	"bytes"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/dt-pm-tools/confluence-sync/internal/document"
	"github.com/dt-pm-tools/confluence-sync/internal/markdown"
)

// Meta is the optional front matter block at the top of a Markdown file.
type Meta struct {
	Title  string   `yaml:"title" toml:"title" json:"title"`
	Labels []string `yaml:"labels" toml:"labels" json:"labels"`
}

// Converted is the result of converting one Markdown source.
type Converted struct {
	Meta     Meta
	Document *document.Document
	Body     string
}

// Convert parses src, including any front matter, and renders it to
// storage format. A front matter block that fails to parse is kept as
// document content.
func Convert(src []byte) (Converted, error) {
	var meta Meta
	rest, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		meta = Meta{}
		rest = src
	}
	meta.Title = strings.TrimSpace(meta.Title)

	doc, err := markdown.Parse(rest)
	if err != nil {
		return Converted{}, err
	}
	body, err := Storage(doc)
	if err != nil {
		return Converted{}, err
	}
	return Converted{Meta: meta, Document: doc, Body: body}, nil
}
