package render

import (
	"context"
	"errors"
	"strings"

	"github.com/alnah/go-taskexport/internal/attach"
	"github.com/alnah/go-taskexport/internal/contextutil"
	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/layout"
	"github.com/alnah/go-taskexport/internal/markup"
)

var attributeColumns = []layout.Column{
	{Title: "Field", MinWidth: 35},
	{Title: "Value", MinWidth: 60, Weight: 1},
}

// detail writes the section of one item and returns how many images it
// embedded.
func (r *Renderer) detail(ctx context.Context, doc layout.Document, e Entry, anchor layout.Anchor, scope *attach.Scope, includeAttachments bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	it := e.Item
	doc.Heading(max(e.Path.Level(), 0), headingText(e), anchor)

	if rows := r.attributeRows(it); len(rows) > 0 {
		if err := doc.Table(layout.Table{Columns: attributeColumns, Rows: rows}); err != nil {
			return 0, err
		}
	}

	r.description(doc, it)

	if len(it.Attachments) == 0 {
		return 0, nil
	}
	doc.Text([]layout.Span{{Text: "Attachments", Bold: true}}, 0)
	if !includeAttachments {
		for _, a := range it.Attachments {
			doc.Text([]layout.Span{{Text: "• " + a.Name}}, 1)
		}
		return 0, nil
	}
	return r.attachments(ctx, doc, it, scope)
}

func headingText(e Entry) string {
	var b strings.Builder
	if len(e.Path) > 0 {
		b.WriteString(e.Path.String())
		b.WriteByte(' ')
	}
	b.WriteString(e.Item.ID)
	if e.Item.Subject != "" {
		b.WriteString(": ")
		b.WriteString(e.Item.Subject)
	}
	return b.String()
}

func (r *Renderer) attributeRows(it *Item) []layout.Row {
	var rows []layout.Row
	add := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			rows = append(rows, layout.Row{Cells: []string{name, value}})
		}
	}
	add("Status", it.Status)
	add("Assignee", it.Assignee)
	add("Priority", it.Priority)
	if !it.Due.IsZero() {
		due, err := dateutil.Format(it.Due, r.cfg.DateFormat)
		if err != nil {
			due = it.Due.Format("2006-01-02")
		}
		add("Due", due)
	}
	if it.ParentID != "" {
		add("Parent", it.ParentID)
	}
	for _, a := range it.Attributes {
		add(a.Name, a.Value)
	}
	return rows
}

func (r *Renderer) description(doc layout.Document, it *Item) {
	for _, b := range r.markup.Convert(it.Description, it.Format) {
		switch b.Kind {
		case markup.Heading:
			spans := make([]layout.Span, len(b.Spans))
			for i, s := range b.Spans {
				s.Bold = true
				spans[i] = s
			}
			doc.Text(spans, 0)
		case markup.ListItem:
			doc.Text(b.Spans, b.Depth)
		case markup.Quote:
			spans := make([]layout.Span, len(b.Spans))
			for i, s := range b.Spans {
				s.Italic = true
				spans[i] = s
			}
			doc.Text(spans, b.Depth+1)
		case markup.Code:
			doc.Code(b.Lines)
		case markup.Rule:
			doc.Rule()
		default:
			doc.Text(b.Spans, b.Depth)
		}
	}
}

// attachments embeds image attachments and lists the others by name. An
// image that cannot be loaded or embedded is noted in the document and
// logged; it does not fail the unit.
func (r *Renderer) attachments(ctx context.Context, doc layout.Document, it *Item, scope *attach.Scope) (int, error) {
	log := contextutil.LoggerFromContext(ctx)
	embedded := 0
	for _, a := range it.Attachments {
		typ := a.ImageType()
		if typ == "" {
			doc.Text([]layout.Span{{Text: "• " + a.Name}}, 1)
			continue
		}
		data, err := scope.LoadImage(ctx, a)
		if err == nil {
			err = doc.Image(layout.Image{Name: a.Name, Type: typ, Data: data, Caption: a.Name})
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return embedded, ctxErr
			}
			if errors.Is(err, attach.ErrScopeReleased) {
				return embedded, err
			}
			log.Warn("attachment not embedded", "item", it.ID, "attachment", a.Name, "error", err)
			doc.Text([]layout.Span{{Text: "[" + a.Name + ": not embedded]", Italic: true}}, 1)
			continue
		}
		embedded++
	}
	return embedded, nil
}
