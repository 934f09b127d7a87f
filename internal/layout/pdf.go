package layout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Compile-time interface checks.
var (
	_ Engine   = (*PDFEngine)(nil)
	_ Document = (*pdfDocument)(nil)
)

// Typography in points, lengths in millimetres.
const (
	fontFamily     = "Helvetica"
	monoFamily     = "Courier"
	bodySize       = 10.0
	codeSize       = 8.5
	footerSize     = 8.0
	lineHeight     = 5.0
	codeLineHeight = 4.0
	rowHeight      = 6.5
	indentStep     = 5.0
	cellPadding    = 1.5
	footerOffset   = -12.0 // from the page bottom
	mmPerInch      = 25.4
	headerGray     = 230
	ellipsis       = "..."
)

// headingSizes maps heading level to font size; deeper levels reuse the last.
var headingSizes = []float64{16, 13, 11.5, 10.5}

// pageSizes maps lowercase page size names to fpdf size names.
var pageSizes = map[string]string{
	"letter": "Letter",
	"a4":     "A4",
	"legal":  "Legal",
}

// PDFEngine lays documents out with fpdf using the core PDF fonts.
type PDFEngine struct{}

// NewPDFEngine creates a PDFEngine.
func NewPDFEngine() *PDFEngine {
	return &PDFEngine{}
}

// NewDocument starts a fresh document with its first page open.
func (e *PDFEngine) NewDocument(s Settings) (Document, error) {
	size, ok := pageSizes[strings.ToLower(s.Page.Size)]
	if !ok {
		size = pageSizes["letter"]
	}
	orientation := "P"
	if strings.EqualFold(s.Page.Orientation, "landscape") {
		orientation = "L"
	}
	margin := s.Page.Margin * mmPerInch
	if margin <= 0 {
		margin = 0.5 * mmPerInch
	}

	pdf := fpdf.New(orientation, "mm", size, "")
	d := &pdfDocument{
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}

	pdf.SetMargins(margin, margin, margin)
	bottom := margin
	if s.Footer != nil {
		bottom = margin + 6
	}
	pdf.SetAutoPageBreak(true, bottom)
	if s.Title != "" {
		pdf.SetTitle(s.Title, true)
	}
	if s.Creator != "" {
		pdf.SetCreator(s.Creator, true)
	}

	if s.Footer != nil {
		footer := s.Footer
		pdf.SetFooterFunc(func() {
			pdf.SetY(footerOffset)
			pdf.SetFont(fontFamily, "I", footerSize)
			pdf.SetTextColor(120, 120, 120)
			pdf.CellFormat(0, 5, d.tr(footer(pdf.PageNo())), "", 0, "C", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		})
	}

	pdf.AddPage()
	pdf.SetFont(fontFamily, "", bodySize)
	if pdf.Err() {
		return nil, fmt.Errorf("starting document: %w", pdf.Error())
	}
	return d, nil
}

// pdfDocument is a Document backed by one fpdf instance.
type pdfDocument struct {
	pdf           *fpdf.Fpdf
	tr            func(string) string
	lastBookmark  int // level of the previous bookmark
	bookmarkSeen  bool
	imageSequence int
	done          bool
}

func (d *pdfDocument) contentWidth() float64 {
	w, _ := d.pdf.GetPageSize()
	left, _, right, _ := d.pdf.GetMargins()
	return w - left - right
}

func (d *pdfDocument) contentBottom() float64 {
	_, h := d.pdf.GetPageSize()
	_, bottom := d.pdf.GetAutoPageBreak()
	return h - bottom
}

func (d *pdfDocument) contentHeight() float64 {
	_, top, _, _ := d.pdf.GetMargins()
	return d.contentBottom() - top
}

// ensureSpace starts a new page unless h millimetres fit below the cursor.
func (d *pdfDocument) ensureSpace(h float64) bool {
	if d.pdf.GetY()+h <= d.contentBottom() {
		return false
	}
	d.pdf.AddPage()
	return true
}

func (d *pdfDocument) Heading(level int, text string, target Anchor) {
	size := headingSizes[min(max(level, 0), len(headingSizes)-1)]
	// Keep the heading with at least two lines of what follows.
	d.ensureSpace(size*0.5 + 2*lineHeight)

	d.pdf.Ln(2)
	if target > 0 {
		d.pdf.SetLink(int(target), -1, -1)
	}
	d.bookmark(text, level)

	d.pdf.SetFont(fontFamily, "B", size)
	d.pdf.MultiCell(0, size*0.5, d.tr(text), "", "L", false)
	d.pdf.SetFont(fontFamily, "", bodySize)
	d.pdf.Ln(1)
}

// bookmark adds an outline entry. Outline levels may only deepen one step at
// a time, so a unit starting mid-tree is clamped to a valid nesting.
func (d *pdfDocument) bookmark(text string, level int) {
	switch {
	case !d.bookmarkSeen:
		level = 0
	case level > d.lastBookmark+1:
		level = d.lastBookmark + 1
	}
	d.pdf.Bookmark(d.tr(text), level, -1)
	d.lastBookmark = level
	d.bookmarkSeen = true
}

func (d *pdfDocument) Text(spans []Span, indent int) {
	if len(spans) == 0 {
		return
	}
	left, _, _, _ := d.pdf.GetMargins()
	offset := float64(indent) * indentStep
	if offset > 0 {
		d.pdf.SetLeftMargin(left + offset)
		defer d.pdf.SetLeftMargin(left)
	}
	d.pdf.SetX(left + offset)

	for _, s := range spans {
		d.applySpanStyle(s)
		if s.URL != "" {
			d.pdf.WriteLinkString(lineHeight, d.tr(s.Text), s.URL)
			continue
		}
		d.pdf.Write(lineHeight, d.tr(s.Text))
	}
	d.resetStyle()
	d.pdf.Ln(lineHeight + 1)
}

func (d *pdfDocument) applySpanStyle(s Span) {
	style := ""
	if s.Bold {
		style += "B"
	}
	if s.Italic {
		style += "I"
	}
	if s.URL != "" {
		style += "U"
	}
	family, size := fontFamily, bodySize
	if s.Mono {
		family, size = monoFamily, codeSize+0.5
	}
	d.pdf.SetFont(family, style, size)
	switch {
	case s.Color != nil:
		d.pdf.SetTextColor(int(s.Color.R), int(s.Color.G), int(s.Color.B))
	case s.URL != "":
		d.pdf.SetTextColor(20, 80, 180)
	default:
		d.pdf.SetTextColor(0, 0, 0)
	}
}

func (d *pdfDocument) resetStyle() {
	d.pdf.SetFont(fontFamily, "", bodySize)
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *pdfDocument) Code(lines [][]Span) {
	if len(lines) == 0 {
		return
	}
	left, _, _, _ := d.pdf.GetMargins()
	d.pdf.SetLeftMargin(left + indentStep)
	defer d.pdf.SetLeftMargin(left)

	d.pdf.Ln(1)
	for _, line := range lines {
		d.pdf.SetX(left + indentStep)
		for _, s := range line {
			d.pdf.SetFont(monoFamily, "", codeSize)
			if s.Color != nil {
				d.pdf.SetTextColor(int(s.Color.R), int(s.Color.G), int(s.Color.B))
			} else {
				d.pdf.SetTextColor(0, 0, 0)
			}
			d.pdf.Write(codeLineHeight, d.tr(s.Text))
		}
		d.pdf.Ln(codeLineHeight)
	}
	d.resetStyle()
	d.pdf.Ln(2)
}

func (d *pdfDocument) Rule() {
	left, _, right, _ := d.pdf.GetMargins()
	w, _ := d.pdf.GetPageSize()
	y := d.pdf.GetY() + 1
	d.pdf.SetDrawColor(180, 180, 180)
	d.pdf.Line(left, y, w-right, y)
	d.pdf.SetDrawColor(0, 0, 0)
	d.pdf.Ln(3)
}

// Table lays rows out one line each, truncating cells that do not fit.
func (d *pdfDocument) Table(t Table) error {
	if len(t.Columns) == 0 {
		return nil
	}
	widths, err := columnWidths(t.Columns, d.contentWidth())
	if err != nil {
		return err
	}

	header := func() {
		d.pdf.SetFont(fontFamily, "B", bodySize-1)
		d.pdf.SetFillColor(headerGray, headerGray, headerGray)
		for i, c := range t.Columns {
			d.pdf.CellFormat(widths[i], rowHeight, d.fit(c.Title, widths[i]), "1", 0, "L", true, 0, "")
		}
		d.pdf.Ln(-1)
		d.pdf.SetFont(fontFamily, "", bodySize-1)
	}

	d.ensureSpace(2 * rowHeight)
	header()
	for _, r := range t.Rows {
		if d.ensureSpace(rowHeight) {
			header()
		}
		for i := range t.Columns {
			text := ""
			if i < len(r.Cells) {
				text = r.Cells[i]
			}
			w := widths[i]
			if i == 0 && r.Indent > 0 {
				pad := strings.Repeat(" ", r.Indent*2)
				text = pad + text
			}
			link := 0
			if i == 0 || (len(t.Columns) > 1 && i == 1) {
				link = int(r.Link)
			}
			d.pdf.CellFormat(w, rowHeight, d.fit(text, w), "1", 0, "L", false, link, "")
		}
		d.pdf.Ln(-1)
	}
	d.resetStyle()
	d.pdf.Ln(2)
	return d.err("table")
}

// columnWidths honours every column's minimum and shares the remainder by
// weight. It fails with ErrOverflow when the minimums alone are too wide.
func columnWidths(cols []Column, available float64) ([]float64, error) {
	var minTotal, weightTotal float64
	for _, c := range cols {
		minTotal += c.MinWidth
		weightTotal += c.Weight
	}
	if minTotal > available {
		return nil, fmt.Errorf("%w: %d columns need %.0fmm, page allows %.0fmm",
			ErrOverflow, len(cols), minTotal, available)
	}

	spare := available - minTotal
	widths := make([]float64, len(cols))
	for i, c := range cols {
		widths[i] = c.MinWidth
		switch {
		case weightTotal > 0:
			widths[i] += spare * c.Weight / weightTotal
		default:
			widths[i] += spare / float64(len(cols))
		}
	}
	return widths, nil
}

// fit translates s and shortens it with an ellipsis to fit width w. The
// translated text is single-byte cp1252, so it is cut by bytes.
func (d *pdfDocument) fit(s string, w float64) string {
	s = d.tr(s)
	limit := w - 2*cellPadding
	if d.pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && d.pdf.GetStringWidth(s+ellipsis) > limit {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}

// Image scales img down to the printable box, keeping its aspect ratio.
func (d *pdfDocument) Image(img Image) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: %s: empty data", ErrImage, img.Name)
	}
	d.imageSequence++
	name := fmt.Sprintf("img%d-%s", d.imageSequence, img.Name)

	opts := fpdf.ImageOptions{ImageType: img.Type, ReadDpi: true}
	info := d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if d.pdf.Err() || info == nil {
		// Clear so the rest of the document still renders.
		err := d.pdf.Error()
		d.pdf.ClearError()
		return fmt.Errorf("%w: %s: %v", ErrImage, img.Name, err)
	}

	w, h := info.Width(), info.Height()
	maxW, maxH := d.contentWidth(), d.contentHeight()-lineHeight
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}

	d.ensureSpace(h + lineHeight)
	left, _, _, _ := d.pdf.GetMargins()
	y := d.pdf.GetY()
	d.pdf.ImageOptions(name, left, y, w, h, false, opts, 0, "")
	d.pdf.SetY(y + h + 1)

	if img.Caption != "" {
		d.pdf.SetFont(fontFamily, "I", bodySize-2)
		d.pdf.MultiCell(0, lineHeight-1, d.tr(img.Caption), "", "L", false)
		d.resetStyle()
	}
	d.pdf.Ln(2)
	return d.err("image")
}

func (d *pdfDocument) NewAnchor() Anchor {
	return Anchor(d.pdf.AddLink())
}

func (d *pdfDocument) PageCount() int {
	return d.pdf.PageCount()
}

func (d *pdfDocument) WriteFile(path string) error {
	if d.done {
		return ErrDocumentDone
	}
	d.done = true
	if err := d.pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

func (d *pdfDocument) Discard() error {
	if d.done {
		return ErrDocumentDone
	}
	d.done = true
	d.pdf.Close()
	return d.err("closing document")
}

func (d *pdfDocument) err(what string) error {
	if d.pdf.Err() {
		return fmt.Errorf("%s: %w", what, d.pdf.Error())
	}
	return nil
}
