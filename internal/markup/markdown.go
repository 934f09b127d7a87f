package markup

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/alnah/go-taskexport/internal/layout"
)

const bullet = "• "

func (c *Converter) markdown(src string) []Block {
	source := []byte(src)
	doc := c.md.Parser().Parse(text.NewReader(source))
	w := &mdWalker{c: c, src: source}
	w.block(doc, 0, false)
	return w.blocks
}

type mdWalker struct {
	c      *Converter
	src    []byte
	blocks []Block
}

func (w *mdWalker) emit(b Block) {
	if b.Kind != Rule && b.Kind != Code {
		b.Spans = trimSpans(b.Spans)
		if len(b.Spans) == 0 {
			return
		}
	}
	w.blocks = append(w.blocks, b)
}

func (w *mdWalker) children(n ast.Node, depth int, quote bool) {
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		w.block(ch, depth, quote)
	}
}

func (w *mdWalker) block(n ast.Node, depth int, quote bool) {
	switch n := n.(type) {
	case *ast.Heading:
		w.emit(Block{Kind: Heading, Level: n.Level, Spans: w.inlines(n, layout.Span{}, nil)})
	case *ast.Paragraph, *ast.TextBlock:
		kind := Paragraph
		if quote {
			kind = Quote
		}
		w.emit(Block{Kind: kind, Depth: depth, Spans: w.inlines(n, layout.Span{}, nil)})
	case *ast.List:
		num := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := bullet
			if n.IsOrdered() {
				marker = fmt.Sprintf("%d. ", num)
				num++
			}
			w.listItem(item, depth+1, marker, quote)
		}
	case *ast.Blockquote:
		w.children(n, depth, true)
	case *ast.FencedCodeBlock:
		w.emit(Block{Kind: Code, Lines: w.c.highlight(w.lines(n), string(n.Language(w.src)))})
	case *ast.CodeBlock:
		w.emit(Block{Kind: Code, Lines: w.c.highlight(w.lines(n), "")})
	case *ast.ThematicBreak:
		w.emit(Block{Kind: Rule})
	case *ast.HTMLBlock:
		// Raw HTML inside Markdown is not rendered.
	case *east.Table:
		w.table(n, depth)
	default:
		w.children(n, depth, quote)
	}
}

// listItem emits the first text block of an item with its marker; nested
// content follows at the same depth.
func (w *mdWalker) listItem(item ast.Node, depth int, marker string, quote bool) {
	first := true
	for ch := item.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch ch.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			if first {
				spans := w.inlines(ch, layout.Span{}, []layout.Span{{Text: marker}})
				w.emit(Block{Kind: ListItem, Depth: depth, Spans: spans})
				first = false
				continue
			}
		}
		w.block(ch, depth, quote)
	}
}

func (w *mdWalker) table(t *east.Table, depth int) {
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		var spans []layout.Span
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			if cell.PreviousSibling() != nil {
				spans = appendSpan(spans, layout.Span{Text: " | ", Bold: header})
			}
			spans = w.inlines(cell, layout.Span{Bold: header}, spans)
		}
		w.emit(Block{Kind: Paragraph, Depth: depth, Spans: spans})
	}
}

func (w *mdWalker) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.Write(seg.Value(w.src))
	}
	return b.String()
}

// inlines flattens the inline children of n into spans styled from st.
func (w *mdWalker) inlines(n ast.Node, st layout.Span, out []layout.Span) []layout.Span {
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch ch := ch.(type) {
		case *ast.Text:
			s := st
			s.Text = string(ch.Value(w.src))
			if ch.SoftLineBreak() || ch.HardLineBreak() {
				s.Text += " "
			}
			out = appendSpan(out, s)
		case *ast.String:
			s := st
			s.Text = string(ch.Value)
			out = appendSpan(out, s)
		case *ast.CodeSpan:
			s := st
			s.Mono = true
			out = w.inlines(ch, s, out)
		case *ast.Emphasis:
			s := st
			if ch.Level >= 2 {
				s.Bold = true
			} else {
				s.Italic = true
			}
			out = w.inlines(ch, s, out)
		case *ast.Link:
			s := st
			s.URL = string(ch.Destination)
			out = w.inlines(ch, s, out)
		case *ast.AutoLink:
			s := st
			s.Text = string(ch.Label(w.src))
			s.URL = string(ch.URL(w.src))
			if ch.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(s.URL, "mailto:") {
				s.URL = "mailto:" + s.URL
			}
			out = appendSpan(out, s)
		case *ast.Image:
			s := st
			s.Italic = true
			alt := spansText(w.inlines(ch, layout.Span{}, nil))
			s.Text = "[image: " + alt + "]"
			out = appendSpan(out, s)
		case *east.TaskCheckBox:
			s := st
			s.Mono = true
			s.Text = "[ ] "
			if ch.IsChecked {
				s.Text = "[x] "
			}
			out = appendSpan(out, s)
		case *ast.RawHTML:
		default:
			out = w.inlines(ch, st, out)
		}
	}
	return out
}

func spansText(spans []layout.Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
