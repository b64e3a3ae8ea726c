package ast

import (
	"fmt"
	"sort"
)

// Document is the source a tree was produced from.
type Document struct {
	Path    string
	Content string

	lines []int
}

func NewDocument(path, content string) *Document {
	return &Document{Path: path, Content: content}
}

func (d *Document) lineStarts() []int {
	if d.lines == nil {
		d.lines = []int{0}
		for i := 0; i < len(d.Content); i++ {
			if d.Content[i] == '\n' {
				d.lines = append(d.lines, i+1)
			}
		}
	}
	return d.lines
}

// Cursor converts a byte offset into a 0-based line and column.
func (d *Document) Cursor(offset int) (line, col int) {
	starts := d.lineStarts()
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Content) {
		offset = len(d.Content)
	}
	line = sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	return line, offset - starts[line]
}

// Offset converts a 0-based line and column into a byte offset, clamped to
// the document.
func (d *Document) Offset(line, col int) int {
	starts := d.lineStarts()
	if line < 0 {
		return 0
	}
	if line >= len(starts) {
		return len(d.Content)
	}
	off := starts[line] + col
	if off > len(d.Content) {
		off = len(d.Content)
	}
	return off
}

// Position is a span inside a Document. The zero value is the intrinsic
// position used for code that has no source.
type Position struct {
	Document *Document
	Offset   int
	Length   int
}

var Intrinsic = Position{}

func (p Position) IsIntrinsic() bool { return p.Document == nil }

func (p Position) String() string {
	if p.Document == nil {
		return "INTRINSIC"
	}
	line, col := p.Document.Cursor(p.Offset)
	return fmt.Sprintf("%s:%d:%d", p.Document.Path, line+1, col+1)
}
