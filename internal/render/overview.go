package render

import (
	"github.com/alnah/go-taskexport/internal/layout"
)

const defaultTitle = "Work items"

// overview writes the title and the table listing every entry. Rows link to
// detail sections laid out in the same document; anchors holds those.
func (r *Renderer) overview(doc layout.Document, entries []Entry, anchors map[*Item]layout.Anchor) error {
	title := r.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	doc.Heading(0, title, 0)

	t := layout.Table{
		Columns: make([]layout.Column, len(r.columns)),
		Rows:    make([]layout.Row, len(entries)),
	}
	for i, c := range r.columns {
		t.Columns[i] = c.spec
	}
	for i, e := range entries {
		cells := make([]string, len(r.columns))
		cells[0] = e.Path.String()
		for j, c := range r.columns[1:] {
			cells[j+1] = c.value(e.Item, r.cfg.DateFormat)
		}
		t.Rows[i] = layout.Row{
			Cells:  cells,
			Indent: max(e.Path.Level(), 0),
			Link:   anchors[e.Item],
		}
	}
	return doc.Table(t)
}
