// Package markup turns item descriptions into layout blocks.
//
// Descriptions arrive as Markdown, HTML or plain text. Each format is reduced
// to the same small block vocabulary the renderer knows how to lay out:
// headings, paragraphs, list items, quotes, code and rules. Anything richer
// (tables, raw HTML, embedded media) degrades to readable text.
package markup

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/alnah/go-taskexport/internal/layout"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown description format")

// Format names a description encoding.
type Format string

const (
	Markdown Format = "markdown"
	HTML     Format = "html"
	Text     Format = "text"
)

// ParseFormat accepts "markdown"/"md", "html" and "text"/"plain". The empty
// string means Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return Markdown, nil
	case "html", "htm":
		return HTML, nil
	case "text", "plain", "txt":
		return Text, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Kind is the type of a Block.
type Kind int

const (
	Paragraph Kind = iota
	Heading
	ListItem
	Quote
	Code
	Rule
)

func (k Kind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Heading:
		return "heading"
	case ListItem:
		return "list item"
	case Quote:
		return "quote"
	case Code:
		return "code"
	case Rule:
		return "rule"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Block is one laid-out unit of a description.
type Block struct {
	Kind  Kind
	Level int             // heading level, 1-6
	Depth int             // list nesting, 1 for top-level items
	Spans []layout.Span   // text of every kind but Code and Rule
	Lines [][]layout.Span // Code only
}

// DefaultCodeStyle is the chroma style used for code blocks.
const DefaultCodeStyle = "github"

// Converter converts descriptions. It is safe for concurrent use.
type Converter struct {
	md    goldmark.Markdown
	style *chroma.Style
}

// NewConverter creates a Converter coloring code with the named chroma style.
// Unknown style names fall back to chroma's default.
func NewConverter(codeStyle string) *Converter {
	if codeStyle == "" {
		codeStyle = DefaultCodeStyle
	}
	return &Converter{
		md: goldmark.New(goldmark.WithExtensions(
			extension.GFM, // Tables, strikethrough, autolinks, task lists
		)),
		style: styles.Get(codeStyle),
	}
}

// Convert parses src in format f. Unknown formats are treated as text.
func (c *Converter) Convert(src string, f Format) []Block {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	switch f {
	case Markdown:
		return c.markdown(src)
	case HTML:
		return c.html(src)
	}
	return plainText(src)
}

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

func plainText(src string) []Block {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	var blocks []Block
	for _, para := range blankLines.Split(src, -1) {
		text := strings.Join(strings.Fields(para), " ")
		if text == "" {
			continue
		}
		blocks = append(blocks, Block{Kind: Paragraph, Spans: []layout.Span{{Text: text}}})
	}
	return blocks
}

// appendSpan adds s to spans, merging it into the last span when both share
// one style.
func appendSpan(spans []layout.Span, s layout.Span) []layout.Span {
	if s.Text == "" {
		return spans
	}
	if n := len(spans); n > 0 && sameStyle(spans[n-1], s) {
		spans[n-1].Text += s.Text
		return spans
	}
	return append(spans, s)
}

func sameStyle(a, b layout.Span) bool {
	return a.Bold == b.Bold && a.Italic == b.Italic && a.Mono == b.Mono &&
		a.URL == b.URL && a.Color == b.Color
}

// trimSpans strips surrounding whitespace from a run of spans and drops spans
// left empty.
func trimSpans(spans []layout.Span) []layout.Span {
	for len(spans) > 0 {
		spans[0].Text = strings.TrimLeft(spans[0].Text, " \t\n")
		if spans[0].Text != "" {
			break
		}
		spans = spans[1:]
	}
	for len(spans) > 0 {
		last := len(spans) - 1
		spans[last].Text = strings.TrimRight(spans[last].Text, " \t\n")
		if spans[last].Text != "" {
			break
		}
		spans = spans[:last]
	}
	return spans
}
