// Package preview writes a standalone HTML outline of an export.
//
// The outline lists the same render order and level paths the PDF uses and
// renders descriptions with goldmark, so structure and description problems
// can be spotted in a browser without laying out pages.
package preview

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"

	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/markup"
	"github.com/alnah/go-taskexport/internal/render"
)

// ErrPreview indicates the outline could not be produced.
var ErrPreview = errors.New("preview generation failed")

//go:embed templates/outline.html
var templates embed.FS

// Options configures an outline.
type Options struct {
	Title      string
	Details    bool // include detail sections
	Batches    int
	DateFormat string
}

// Writer renders outlines. It is safe for concurrent use.
type Writer struct {
	md     goldmark.Markdown
	blocks *markup.Converter
	tmpl   *template.Template
	css    template.CSS
}

// New creates a Writer highlighting code with the named chroma style.
func New(codeStyle string) (*Writer, error) {
	if codeStyle == "" {
		codeStyle = markup.DefaultCodeStyle
	}
	tmpl, err := template.ParseFS(templates, "templates/outline.html")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreview, err)
	}

	formatOpts := []chromahtml.Option{chromahtml.WithClasses(true)}
	var css bytes.Buffer
	if err := chromahtml.New(formatOpts...).WriteCSS(&css, styles.Get(codeStyle)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreview, err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(codeStyle),
				highlighting.WithFormatOptions(formatOpts...),
			),
		),
	)
	return &Writer{
		md:     md,
		blocks: markup.NewConverter(codeStyle),
		tmpl:   tmpl,
		css:    template.CSS(css.String()), // #nosec G203 -- generated by chroma
	}, nil
}

type attribute struct {
	Name  string
	Value string
}

type item struct {
	Path        string
	Indent      int
	Anchor      string
	ID          string
	Subject     string
	Status      string
	Attributes  []attribute
	Description template.HTML
	Attachments []string
}

type page struct {
	Title   string
	Batches int
	Details bool
	CodeCSS template.CSS
	Items   []item
}

// Render returns the outline of entries as an HTML document.
func (w *Writer) Render(ctx context.Context, entries []render.Entry, opts Options) ([]byte, error) {
	title := opts.Title
	if title == "" {
		title = "Work items"
	}
	p := page{
		Title:   title,
		Batches: max(opts.Batches, 1),
		Details: opts.Details,
		CodeCSS: w.css,
		Items:   make([]item, 0, len(entries)),
	}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := w.item(i, e, opts)
		if err != nil {
			return nil, err
		}
		p.Items = append(p.Items, it)
	}

	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreview, err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the outline to path.
func (w *Writer) WriteFile(ctx context.Context, path string, entries []render.Entry, opts Options) error {
	data, err := w.Render(ctx, entries, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 -- preview is meant to be opened in a browser
		return fmt.Errorf("%w: writing %s: %v", ErrPreview, path, err)
	}
	return nil
}

func (w *Writer) item(rank int, e render.Entry, opts Options) (item, error) {
	level := max(e.Path.Level(), 0)
	out := item{
		Path:    e.Path.String(),
		Indent:  level,
		Anchor:  fmt.Sprintf("item-%d", rank+1),
		ID:      e.Item.ID,
		Subject: e.Item.Subject,
		Status:  e.Item.Status,
	}
	if !opts.Details {
		return out, nil
	}

	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			out.Attributes = append(out.Attributes, attribute{Name: name, Value: value})
		}
	}
	add("Status", e.Item.Status)
	add("Assignee", e.Item.Assignee)
	add("Priority", e.Item.Priority)
	if due, err := dateutil.Format(e.Item.Due, opts.DateFormat); err == nil {
		add("Due", due)
	}
	for _, a := range e.Item.Attributes {
		add(a.Name, a.Value)
	}
	for _, a := range e.Item.Attachments {
		out.Attachments = append(out.Attachments, a.Name)
	}

	desc, err := w.description(e.Item)
	if err != nil {
		return item{}, fmt.Errorf("%w: item %s: %v", ErrPreview, e.Item.ID, err)
	}
	out.Description = desc
	return out, nil
}

// description renders Markdown with goldmark. Raw HTML is never passed
// through: HTML and text descriptions are reduced to blocks and escaped.
func (w *Writer) description(it *render.Item) (template.HTML, error) {
	if strings.TrimSpace(it.Description) == "" {
		return "", nil
	}
	if it.Format == markup.Markdown || it.Format == "" {
		var buf bytes.Buffer
		if err := w.md.Convert([]byte(it.Description), &buf); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil // #nosec G203 -- goldmark escapes raw HTML without WithUnsafe
	}

	var b strings.Builder
	for _, blk := range w.blocks.Convert(it.Description, it.Format) {
		switch blk.Kind {
		case markup.Code:
			b.WriteString("<pre>")
			for _, line := range blk.Lines {
				for _, s := range line {
					b.WriteString(template.HTMLEscapeString(s.Text))
				}
				b.WriteByte('\n')
			}
			b.WriteString("</pre>\n")
		case markup.Rule:
			b.WriteString("<hr>\n")
		default:
			tag := "p"
			switch blk.Kind {
			case markup.Heading:
				tag = "strong"
			case markup.Quote:
				tag = "blockquote"
			}
			fmt.Fprintf(&b, "<%s>", tag)
			for _, s := range blk.Spans {
				b.WriteString(template.HTMLEscapeString(s.Text))
			}
			fmt.Fprintf(&b, "</%s>\n", tag)
		}
	}
	return template.HTML(b.String()), nil // #nosec G203 -- every span escaped above
}
