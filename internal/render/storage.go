// Package render turns a document.Document into Confluence storage format,
// the XHTML dialect Confluence stores page bodies in.
package render

import (
	"path"
	"strconv"
	"strings"

	"github.com/dt-pm-tools/confluence-sync/internal/document"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// Storage renders doc to storage format. Top-level blocks are separated by
// newlines; the output for a given document is always byte-identical.
func Storage(doc *document.Document) (string, error) {
	r := &renderer{}
	if err := r.blocks(doc.Blocks, false, "\n"); err != nil {
		return "", err
	}
	return r.b.String(), nil
}

type renderer struct {
	b strings.Builder
}

// blocks renders a block sequence. bare drops the <p> wrapper of
// paragraphs, as tight list items require.
func (r *renderer) blocks(blocks []document.Block, bare bool, sep string) error {
	for i, blk := range blocks {
		if i > 0 {
			r.b.WriteString(sep)
		}
		if err := r.block(blk, bare); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) block(blk document.Block, bare bool) error {
	switch n := blk.(type) {
	case *document.Heading:
		level := strconv.Itoa(min(max(n.Level, 1), 6))
		r.b.WriteString("<h" + level + ">")
		if err := r.inlines(n.Inlines); err != nil {
			return err
		}
		r.b.WriteString("</h" + level + ">")
	case *document.Paragraph:
		if bare {
			return r.inlines(n.Inlines)
		}
		r.b.WriteString("<p>")
		if err := r.inlines(n.Inlines); err != nil {
			return err
		}
		r.b.WriteString("</p>")
	case *document.List:
		return r.list(n)
	case *document.Table:
		return r.table(n)
	case *document.CodeBlock:
		r.code(n)
	case *document.Blockquote:
		r.b.WriteString("<blockquote>")
		if err := r.blocks(n.Blocks, false, ""); err != nil {
			return err
		}
		r.b.WriteString("</blockquote>")
	case *document.ThematicBreak:
		r.b.WriteString("<hr/>")
	case *document.DefinitionList:
		return r.definitionList(n)
	default:
		return syncerr.New(syncerr.Render, "render storage", "unsupported block %T", blk)
	}
	return nil
}

func (r *renderer) list(n *document.List) error {
	if n.IsTaskList() {
		r.b.WriteString("<ac:task-list>")
		for _, item := range n.Items {
			status := "incomplete"
			if item.Checked {
				status = "complete"
			}
			r.b.WriteString("<ac:task><ac:task-status>" + status + "</ac:task-status><ac:task-body>")
			if err := r.blocks(item.Blocks, n.Tight, ""); err != nil {
				return err
			}
			r.b.WriteString("</ac:task-body></ac:task>")
		}
		r.b.WriteString("</ac:task-list>")
		return nil
	}

	tag := "ul"
	open := "<ul>"
	if n.Ordered {
		tag = "ol"
		open = "<ol>"
		if n.Start != 1 {
			open = `<ol start="` + strconv.Itoa(n.Start) + `">`
		}
	}
	r.b.WriteString(open)
	for _, item := range n.Items {
		r.b.WriteString("<li>")
		if item.Task {
			if item.Checked {
				r.b.WriteString("[x] ")
			} else {
				r.b.WriteString("[ ] ")
			}
		}
		if err := r.blocks(item.Blocks, n.Tight, ""); err != nil {
			return err
		}
		r.b.WriteString("</li>")
	}
	r.b.WriteString("</" + tag + ">")
	return nil
}

func (r *renderer) table(n *document.Table) error {
	r.b.WriteString("<table><tbody>")
	if len(n.Header) > 0 {
		if err := r.row(n.Header, n.Align, "th"); err != nil {
			return err
		}
	}
	for _, row := range n.Rows {
		if err := r.row(row, n.Align, "td"); err != nil {
			return err
		}
	}
	r.b.WriteString("</tbody></table>")
	return nil
}

func (r *renderer) row(cells []document.Cell, align []document.Alignment, tag string) error {
	r.b.WriteString("<tr>")
	for i, cell := range cells {
		r.b.WriteString("<" + tag)
		if i < len(align) && align[i] != document.AlignNone {
			r.b.WriteString(` style="text-align: ` + align[i].String() + `;"`)
		}
		r.b.WriteString(">")
		if err := r.inlines(cell.Inlines); err != nil {
			return err
		}
		r.b.WriteString("</" + tag + ">")
	}
	r.b.WriteString("</tr>")
	return nil
}

func (r *renderer) code(n *document.CodeBlock) {
	if n.Language == "" {
		r.b.WriteString("<pre>" + escapeText(n.Code) + "</pre>")
		return
	}
	r.b.WriteString(`<ac:structured-macro ac:name="code">`)
	r.b.WriteString(`<ac:parameter ac:name="language">` + escapeText(CodeLanguage(n.Language)) + `</ac:parameter>`)
	r.b.WriteString("<ac:plain-text-body><![CDATA[" + cdata(n.Code) + "]]></ac:plain-text-body>")
	r.b.WriteString("</ac:structured-macro>")
}

func (r *renderer) definitionList(n *document.DefinitionList) error {
	r.b.WriteString("<dl>")
	for _, item := range n.Items {
		for _, term := range item.Terms {
			r.b.WriteString("<dt>")
			if err := r.inlines(term); err != nil {
				return err
			}
			r.b.WriteString("</dt>")
		}
		for _, desc := range item.Descriptions {
			r.b.WriteString("<dd>")
			if err := r.blocks(desc, len(desc) == 1, ""); err != nil {
				return err
			}
			r.b.WriteString("</dd>")
		}
	}
	r.b.WriteString("</dl>")
	return nil
}

func (r *renderer) inlines(inlines []document.Inline) error {
	for _, in := range inlines {
		if err := r.inline(in); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) wrap(open, close string, children []document.Inline) error {
	r.b.WriteString(open)
	if err := r.inlines(children); err != nil {
		return err
	}
	r.b.WriteString(close)
	return nil
}

func (r *renderer) inline(in document.Inline) error {
	switch n := in.(type) {
	case *document.Text:
		r.b.WriteString(escapeText(n.Value))
	case *document.Emphasis:
		return r.wrap("<em>", "</em>", n.Children)
	case *document.Strong:
		return r.wrap("<strong>", "</strong>", n.Children)
	case *document.Strikethrough:
		return r.wrap("<del>", "</del>", n.Children)
	case *document.Code:
		r.b.WriteString("<code>" + escapeText(n.Value) + "</code>")
	case *document.Link:
		r.b.WriteString(`<a href="` + escapeAttr(n.URL) + `"`)
		if n.Title != "" {
			r.b.WriteString(` title="` + escapeAttr(n.Title) + `"`)
		}
		r.b.WriteString(">")
		if len(n.Children) == 0 {
			r.b.WriteString(escapeText(n.URL))
		} else if err := r.inlines(n.Children); err != nil {
			return err
		}
		r.b.WriteString("</a>")
	case *document.Image:
		r.image(n)
	case *document.LineBreak:
		r.b.WriteString("<br/>")
	case *document.Escaped:
		r.b.WriteString(escapeText(n.Char))
	case *document.Subscript:
		return r.wrap("<sub>", "</sub>", n.Children)
	case *document.Superscript:
		return r.wrap("<sup>", "</sup>", n.Children)
	case *document.RawHTML:
		// Raw HTML is shown as text, never interpreted as markup.
		r.b.WriteString(escapeText(n.Value))
	default:
		return syncerr.New(syncerr.Render, "render storage", "unsupported inline %T", in)
	}
	return nil
}

func (r *renderer) image(n *document.Image) {
	r.b.WriteString("<ac:image")
	if n.Alt != "" {
		r.b.WriteString(` ac:alt="` + escapeAttr(n.Alt) + `"`)
	}
	if n.Title != "" {
		r.b.WriteString(` ac:title="` + escapeAttr(n.Title) + `"`)
	}
	r.b.WriteString(">")
	if isAbsoluteURL(n.URL) {
		r.b.WriteString(`<ri:url ri:value="` + escapeAttr(n.URL) + `"/>`)
	} else {
		r.b.WriteString(`<ri:attachment ri:filename="` + escapeAttr(attachmentName(n.URL)) + `"/>`)
	}
	r.b.WriteString("</ac:image>")
}

func isAbsoluteURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//") ||
		strings.HasPrefix(lower, "data:")
}

// attachmentName reduces a relative image path to the file name Confluence
// stores attachments under.
func attachmentName(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

func escapeText(s string) string {
	return textEscaper.Replace(stripInvalidXML(s))
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(stripInvalidXML(s))
}

// stripInvalidXML removes characters XML 1.0 does not allow: C0 controls
// other than tab, newline and carriage return, and U+FFFE/U+FFFF.
func stripInvalidXML(s string) string {
	if strings.IndexFunc(s, invalidXML) < 0 {
		return s
	}
	return strings.Map(func(c rune) rune {
		if invalidXML(c) {
			return -1
		}
		return c
	}, s)
}

func invalidXML(c rune) bool {
	if c < 0x20 {
		return c != '\t' && c != '\n' && c != '\r'
	}
	return c == 0xFFFE || c == 0xFFFF
}

// cdata makes s safe inside a CDATA section by splitting any "]]>".
func cdata(s string) string {
	return strings.ReplaceAll(stripInvalidXML(s), "]]>", "]]]]><![CDATA[>")
}
