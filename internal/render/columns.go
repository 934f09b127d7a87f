package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/layout"
)

// ErrUnknownColumn is returned for overview column names that do not exist.
var ErrUnknownColumn = errors.New("unknown overview column")

// Column names an overview table column. The level path column is always
// present and comes first.
type Column string

const (
	ColumnID       Column = "id"
	ColumnSubject  Column = "subject"
	ColumnStatus   Column = "status"
	ColumnAssignee Column = "assignee"
	ColumnPriority Column = "priority"
	ColumnDue      Column = "due"
)

// DefaultColumns is the overview layout used when none is configured.
var DefaultColumns = []Column{ColumnID, ColumnSubject, ColumnStatus, ColumnAssignee, ColumnDue}

// column is a resolved overview column.
type column struct {
	spec  layout.Column
	value func(it *Item, dateFormat string) string
}

const pathColumnWidth = 16

var columnSpecs = map[Column]column{
	ColumnID: {
		spec:  layout.Column{Title: "ID", MinWidth: 22},
		value: func(it *Item, _ string) string { return it.ID },
	},
	ColumnSubject: {
		spec:  layout.Column{Title: "Subject", MinWidth: 50, Weight: 1},
		value: func(it *Item, _ string) string { return it.Subject },
	},
	ColumnStatus: {
		spec:  layout.Column{Title: "Status", MinWidth: 24},
		value: func(it *Item, _ string) string { return it.Status },
	},
	ColumnAssignee: {
		spec:  layout.Column{Title: "Assignee", MinWidth: 30, Weight: 0.4},
		value: func(it *Item, _ string) string { return it.Assignee },
	},
	ColumnPriority: {
		spec:  layout.Column{Title: "Priority", MinWidth: 18},
		value: func(it *Item, _ string) string { return it.Priority },
	},
	ColumnDue: {
		spec: layout.Column{Title: "Due", MinWidth: 22},
		value: func(it *Item, format string) string {
			s, err := dateutil.Format(it.Due, format)
			if err != nil {
				return it.Due.Format("2006-01-02")
			}
			return s
		},
	},
}

// ParseColumns parses a comma-separated column list such as "id,subject,due".
func ParseColumns(s string) ([]Column, error) {
	var cols []Column
	for part := range strings.SplitSeq(s, ",") {
		name := Column(strings.ToLower(strings.TrimSpace(part)))
		if name == "" {
			continue
		}
		if _, ok := columnSpecs[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, part)
		}
		cols = append(cols, name)
	}
	return cols, nil
}

func resolveColumns(cols []Column) ([]column, error) {
	out := make([]column, 0, len(cols)+1)
	out = append(out, column{
		spec: layout.Column{Title: "#", MinWidth: pathColumnWidth},
	})
	seen := make(map[Column]bool, len(cols))
	for _, c := range cols {
		spec, ok := columnSpecs[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, spec)
	}
	return out, nil
}
