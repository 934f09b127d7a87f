package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-taskexport/internal/layout"
)

func (c *Converter) html(src string) []Block {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return plainText(src)
	}
	w := &htmlWalker{c: c}
	w.walk(root, layout.Span{})
	w.flush()
	return w.blocks
}

// list tracks one open <ul>/<ol>.
type list struct {
	ordered bool
	next    int
}

type htmlWalker struct {
	c      *Converter
	blocks []Block
	cur    Block
	open   bool
	lists  []list
	quote  int
	inCell bool
}

// start begins a new block, finishing the current one.
func (w *htmlWalker) start(b Block) {
	w.flush()
	w.cur = b
	w.open = true
}

func (w *htmlWalker) flush() {
	if !w.open {
		return
	}
	w.open = false
	w.cur.Spans = trimSpans(w.cur.Spans)
	if len(w.cur.Spans) > 0 {
		w.blocks = append(w.blocks, w.cur)
	}
	w.cur = Block{}
}

func (w *htmlWalker) defaultBlock() Block {
	if w.quote > 0 {
		return Block{Kind: Quote, Depth: len(w.lists)}
	}
	return Block{Kind: Paragraph, Depth: len(w.lists)}
}

func (w *htmlWalker) text(s layout.Span) {
	if !w.open {
		if strings.TrimSpace(s.Text) == "" {
			return
		}
		w.start(w.defaultBlock())
	}
	w.cur.Spans = appendSpan(w.cur.Spans, s)
}

func (w *htmlWalker) children(n *html.Node, st layout.Span) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		w.walk(ch, st)
	}
}

func (w *htmlWalker) walk(n *html.Node, st layout.Span) {
	switch n.Type {
	case html.TextNode:
		s := st
		s.Text = collapseSpace(n.Data)
		w.text(s)
		return
	case html.ElementNode:
	default:
		w.children(n, st)
		return
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template:
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer:
		if !w.awaitingItemText() {
			w.start(w.defaultBlock())
		}
		w.children(n, st)
		w.flush()
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		w.start(Block{Kind: Heading, Level: level})
		w.children(n, st)
		w.flush()
	case atom.Ul, atom.Ol:
		w.flush()
		w.lists = append(w.lists, list{ordered: n.DataAtom == atom.Ol, next: 1})
		w.children(n, st)
		w.lists = w.lists[:len(w.lists)-1]
		w.flush()
	case atom.Li:
		w.listItem(n, st)
	case atom.Blockquote:
		w.flush()
		w.quote++
		w.children(n, st)
		w.quote--
		w.flush()
	case atom.Pre:
		w.flush()
		w.blocks = append(w.blocks, Block{Kind: Code, Lines: w.c.highlight(textContent(n), codeLanguage(n))})
	case atom.Hr:
		w.flush()
		w.blocks = append(w.blocks, Block{Kind: Rule})
	case atom.Br:
		if w.inCell {
			w.text(layout.Span{Text: " "})
			return
		}
		w.flush()
	case atom.Tr:
		w.start(w.defaultBlock())
		w.children(n, st)
		w.flush()
	case atom.Td, atom.Th:
		if w.open && len(w.cur.Spans) > 0 {
			w.text(layout.Span{Text: " | ", Bold: st.Bold || n.DataAtom == atom.Th})
		}
		s := st
		s.Bold = s.Bold || n.DataAtom == atom.Th
		w.inCell = true
		w.children(n, s)
		w.inCell = false
	case atom.B, atom.Strong:
		s := st
		s.Bold = true
		w.children(n, s)
	case atom.I, atom.Em, atom.Cite:
		s := st
		s.Italic = true
		w.children(n, s)
	case atom.Code, atom.Kbd, atom.Tt, atom.Samp:
		s := st
		s.Mono = true
		w.children(n, s)
	case atom.A:
		s := st
		if href := attr(n, "href"); href != "" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			s.URL = href
		}
		w.children(n, s)
	case atom.Img:
		s := st
		s.Italic = true
		s.Text = "[image: " + attr(n, "alt") + "]"
		w.text(s)
	default:
		w.children(n, st)
	}
}

func (w *htmlWalker) listItem(n *html.Node, st layout.Span) {
	marker := bullet
	if len(w.lists) > 0 {
		l := &w.lists[len(w.lists)-1]
		if l.ordered {
			marker = fmt.Sprintf("%d. ", l.next)
			l.next++
		}
	}
	w.start(Block{Kind: ListItem, Depth: max(len(w.lists), 1), Spans: []layout.Span{{Text: marker}}})
	w.children(n, st)
	w.flush()
}

// awaitingItemText reports whether a list item holds only its marker, so a
// leading <p> continues the item instead of starting a paragraph.
func (w *htmlWalker) awaitingItemText() bool {
	return w.open && w.cur.Kind == ListItem && len(w.cur.Spans) == 1
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// codeLanguage reads a "language-x" class from a <pre> or its <code> child.
func codeLanguage(pre *html.Node) string {
	nodes := []*html.Node{pre}
	if c := pre.FirstChild; c != nil && c.DataAtom == atom.Code {
		nodes = append(nodes, c)
	}
	for _, n := range nodes {
		for _, class := range strings.Fields(attr(n, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			visit(ch)
		}
	}
	visit(n)
	return b.String()
}

func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	lead := isSpace(s[0])
	trail := isSpace(s[len(s)-1])
	out := strings.Join(strings.Fields(s), " ")
	if out == "" {
		return " "
	}
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
