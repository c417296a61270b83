// Package document defines the structural tree produced by parsing Markdown.
//
// Blocks and inlines are closed sum types: every variant lives in this
// package and implements an unexported marker method, so a type switch over
// BlockKinds / InlineKinds is the complete set a renderer has to handle.
package document

// Document is an ordered sequence of blocks.
type Document struct {
	Blocks []Block
}

// BlockKind tags a block variant.
type BlockKind int

const (
	KindHeading BlockKind = iota
	KindParagraph
	KindList
	KindTable
	KindCodeBlock
	KindBlockquote
	KindThematicBreak
	KindDefinitionList
)

var blockKindNames = [...]string{
	KindHeading:        "heading",
	KindParagraph:      "paragraph",
	KindList:           "list",
	KindTable:          "table",
	KindCodeBlock:      "code_block",
	KindBlockquote:     "blockquote",
	KindThematicBreak:  "thematic_break",
	KindDefinitionList: "definition_list",
}

func (k BlockKind) String() string {
	if k < 0 || int(k) >= len(blockKindNames) {
		return "unknown"
	}
	return blockKindNames[k]
}

// BlockKinds lists every block variant.
func BlockKinds() []BlockKind {
	kinds := make([]BlockKind, len(blockKindNames))
	for i := range kinds {
		kinds[i] = BlockKind(i)
	}
	return kinds
}

// Block is one of the block variants declared in this package.
type Block interface {
	BlockKind() BlockKind
	block()
}

// Heading is an ATX or setext heading, Level 1 to 6.
type Heading struct {
	Level   int
	Inlines []Inline
}

// Paragraph is a run of inline content.
type Paragraph struct {
	Inlines []Inline
}

// List is a bullet or ordered list. Tight lists render item paragraphs
// without paragraph wrappers.
type List struct {
	Ordered bool
	Start   int
	Tight   bool
	Items   []ListItem
}

// ListItem owns blocks, which may include nested lists.
type ListItem struct {
	Task    bool
	Checked bool
	Blocks  []Block
}

// Alignment of a table column.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "none"
	}
}

// Table is a GFM table. Align has one entry per column.
type Table struct {
	Align  []Alignment
	Header []Cell
	Rows   [][]Cell
}

// Cell is one table cell.
type Cell struct {
	Inlines []Inline
}

// CodeBlock is fenced or indented code. Language is empty when the fence
// carried no info string.
type CodeBlock struct {
	Language string
	Code     string
}

// Blockquote wraps nested blocks.
type Blockquote struct {
	Blocks []Block
}

// ThematicBreak is a horizontal rule.
type ThematicBreak struct{}

// DefinitionList holds term and description groups.
type DefinitionList struct {
	Items []Definition
}

// Definition groups one or more terms with their descriptions.
type Definition struct {
	Terms        [][]Inline
	Descriptions [][]Block
}

func (*Heading) BlockKind() BlockKind        { return KindHeading }
func (*Paragraph) BlockKind() BlockKind      { return KindParagraph }
func (*List) BlockKind() BlockKind           { return KindList }
func (*Table) BlockKind() BlockKind          { return KindTable }
func (*CodeBlock) BlockKind() BlockKind      { return KindCodeBlock }
func (*Blockquote) BlockKind() BlockKind     { return KindBlockquote }
func (*ThematicBreak) BlockKind() BlockKind  { return KindThematicBreak }
func (*DefinitionList) BlockKind() BlockKind { return KindDefinitionList }

func (*Heading) block()        {}
func (*Paragraph) block()      {}
func (*List) block()           {}
func (*Table) block()          {}
func (*CodeBlock) block()      {}
func (*Blockquote) block()     {}
func (*ThematicBreak) block()  {}
func (*DefinitionList) block() {}

// IsTaskList reports whether every item of the list is a task item.
func (l *List) IsTaskList() bool {
	if len(l.Items) == 0 {
		return false
	}
	for _, item := range l.Items {
		if !item.Task {
			return false
		}
	}
	return true
}
