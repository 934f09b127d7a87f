// Package taskexport renders work items into a single paginated PDF.
//
// # Quick Start
//
// Create an exporter and export a list of items:
//
//	exp, err := taskexport.NewExporter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc, err := exp.Export(ctx, taskexport.Request{
//	    Items: []taskexport.Item{
//	        {ID: "T-1", Subject: "Release 2.0"},
//	        {ID: "T-2", ParentID: "T-1", Subject: "Write changelog"},
//	    },
//	    Output:         "items.pdf",
//	    Hierarchy:      true,
//	    IncludeDetails: true,
//	})
//	if err != nil {
//	    var xerr *taskexport.ExportError
//	    if errors.As(err, &xerr) {
//	        fmt.Println(xerr.UserMessage())
//	    }
//	    return
//	}
//	fmt.Println(doc.Pages, "pages")
//
// The document opens with an overview table of every item, each row linking
// to the item's detail section when details are included. Every page footer
// reads "Page X of N" with N the page count of the whole document.
//
// # Export Pipeline
//
// An export runs these stages:
//
//  1. Hierarchy indexing: items are nested under their parents and numbered
//     with level paths (1, 1.1, 1.2, 2, ...)
//  2. Batch planning: large exports with details and attachments are split
//     into units of at most the batch size
//  3. Pass 1: every unit is laid out and discarded to count pages
//  4. Pass 2: every unit is laid out again with the page total known and
//     written to a work directory
//  5. Merge: units are concatenated by an external tool (pdfunite by default)
//
// Splitting needs the merge tool. It is probed once per Exporter, the first
// time an export is large enough to split; without it the export is
// rendered as one unit.
//
// # Configuration
//
// Use functional options to customize the exporter:
//
//	exp, err := taskexport.NewExporter(
//	    taskexport.WithBatchSize(50),
//	    taskexport.WithOrphanPolicy(taskexport.RejectOrphans),
//	    taskexport.WithMergeTool("qpdf", ""),
//	    taskexport.WithAttachmentRoot("/srv/attachments"),
//	    taskexport.WithDateFormat("DD/MM/YYYY"),
//	)
//
// Per-export settings are passed via Request:
//
//	doc, err := exp.Export(ctx, taskexport.Request{
//	    Items:    items,
//	    Output:   "report.pdf",
//	    Title:    "Sprint 42",
//	    Footer:   &taskexport.Footer{Text: "ACME", Date: "auto"},
//	    Page:     &taskexport.PageSettings{Size: "a4", Orientation: "landscape", Margin: 0.5},
//	    Overview: []taskexport.Column{taskexport.ColumnID, taskexport.ColumnSubject, taskexport.ColumnDue},
//	})
//
// # Errors
//
// Export returns an *ExportError whose Kind tells invalid input, layout
// overflow, merge failure and cancellation apart. Nothing is written to
// Request.Output when an export fails.
//
// # Parallel Processing
//
// An Exporter is safe for concurrent use. To bound how many exports run at
// once, use ExporterPool:
//
//	pool := taskexport.NewExporterPool(4, taskexport.WithBatchSize(50))
//	defer pool.Close()
//
//	doc, err := pool.Export(ctx, req)
package taskexport
