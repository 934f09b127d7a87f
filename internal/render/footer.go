package render

import (
	"strconv"
	"strings"

	"github.com/alnah/go-taskexport/internal/layout"
)

const footerSeparator = "  |  "

// FooterText builds the footer for global page number page. total <= 0 means
// the grand total is not known yet.
func FooterText(f Footer, page, total int) string {
	parts := make([]string, 0, 3)
	if f.Text != "" {
		parts = append(parts, f.Text)
	}
	if f.Date != "" {
		parts = append(parts, f.Date)
	}
	num := "Page " + strconv.Itoa(page)
	if total > 0 {
		num += " of " + strconv.Itoa(total)
	}
	parts = append(parts, num)
	return strings.Join(parts, footerSeparator)
}

// footer numbers the document's pages after offset earlier pages.
func (r *Renderer) footer(offset, total int) layout.FooterFunc {
	f := r.cfg.Footer
	return func(page int) string {
		return FooterText(f, offset+page, total)
	}
}
