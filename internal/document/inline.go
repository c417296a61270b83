package document

import "strings"

// InlineKind tags an inline variant.
type InlineKind int

const (
	KindText InlineKind = iota
	KindEmphasis
	KindStrong
	KindStrikethrough
	KindCode
	KindLink
	KindImage
	KindLineBreak
	KindEscaped
	KindSubscript
	KindSuperscript
	KindRawHTML
)

var inlineKindNames = [...]string{
	KindText:          "text",
	KindEmphasis:      "emphasis",
	KindStrong:        "strong",
	KindStrikethrough: "strikethrough",
	KindCode:          "code",
	KindLink:          "link",
	KindImage:         "image",
	KindLineBreak:     "line_break",
	KindEscaped:       "escaped",
	KindSubscript:     "subscript",
	KindSuperscript:   "superscript",
	KindRawHTML:       "raw_html",
}

func (k InlineKind) String() string {
	if k < 0 || int(k) >= len(inlineKindNames) {
		return "unknown"
	}
	return inlineKindNames[k]
}

// InlineKinds lists every inline variant.
func InlineKinds() []InlineKind {
	kinds := make([]InlineKind, len(inlineKindNames))
	for i := range kinds {
		kinds[i] = InlineKind(i)
	}
	return kinds
}

// Inline is one of the inline variants declared in this package.
type Inline interface {
	InlineKind() InlineKind
	inline()
}

// Text is literal text with entities already resolved.
type Text struct{ Value string }

// Emphasis renders as <em>.
type Emphasis struct{ Children []Inline }

// Strong renders as <strong>.
type Strong struct{ Children []Inline }

// Strikethrough is ~~deleted~~ text.
type Strikethrough struct{ Children []Inline }

// Code is an inline code span.
type Code struct{ Value string }

// Link is an inline or autolink. Children may be empty for bare URLs.
type Link struct {
	URL      string
	Title    string
	Children []Inline
}

// Image references a remote URL or a file attached to the page.
type Image struct {
	URL   string
	Title string
	Alt   string
}

// LineBreak is a hard break or a <br> tag.
type LineBreak struct{}

// Escaped is a backslash-escaped character, kept literal.
type Escaped struct{ Char string }

// Subscript comes from <sub> tags.
type Subscript struct{ Children []Inline }

// Superscript comes from <sup> tags or ^caret^ syntax.
type Superscript struct{ Children []Inline }

// RawHTML is an opaque HTML span carried through verbatim.
type RawHTML struct{ Value string }

func (*Text) InlineKind() InlineKind          { return KindText }
func (*Emphasis) InlineKind() InlineKind      { return KindEmphasis }
func (*Strong) InlineKind() InlineKind        { return KindStrong }
func (*Strikethrough) InlineKind() InlineKind { return KindStrikethrough }
func (*Code) InlineKind() InlineKind          { return KindCode }
func (*Link) InlineKind() InlineKind          { return KindLink }
func (*Image) InlineKind() InlineKind         { return KindImage }
func (*LineBreak) InlineKind() InlineKind     { return KindLineBreak }
func (*Escaped) InlineKind() InlineKind       { return KindEscaped }
func (*Subscript) InlineKind() InlineKind     { return KindSubscript }
func (*Superscript) InlineKind() InlineKind   { return KindSuperscript }
func (*RawHTML) InlineKind() InlineKind       { return KindRawHTML }

func (*Text) inline()          {}
func (*Emphasis) inline()      {}
func (*Strong) inline()        {}
func (*Strikethrough) inline() {}
func (*Code) inline()          {}
func (*Link) inline()          {}
func (*Image) inline()         {}
func (*LineBreak) inline()     {}
func (*Escaped) inline()       {}
func (*Subscript) inline()     {}
func (*Superscript) inline()   {}
func (*RawHTML) inline()       {}

// PlainText flattens inlines into their visible text, dropping markup.
func PlainText(inlines []Inline) string {
	var b strings.Builder
	writePlain(&b, inlines)
	return b.String()
}

func writePlain(b *strings.Builder, inlines []Inline) {
	for _, in := range inlines {
		switch n := in.(type) {
		case *Text:
			b.WriteString(n.Value)
		case *Code:
			b.WriteString(n.Value)
		case *Escaped:
			b.WriteString(n.Char)
		case *RawHTML:
			b.WriteString(n.Value)
		case *Image:
			b.WriteString(n.Alt)
		case *LineBreak:
			b.WriteString("\n")
		case *Emphasis:
			writePlain(b, n.Children)
		case *Strong:
			writePlain(b, n.Children)
		case *Strikethrough:
			writePlain(b, n.Children)
		case *Link:
			writePlain(b, n.Children)
		case *Subscript:
			writePlain(b, n.Children)
		case *Superscript:
			writePlain(b, n.Children)
		}
	}
}
