package source

import (
	"context"
	"fmt"

	"github.com/alnah/go-taskexport/internal/attach"
	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/markup"
	"github.com/alnah/go-taskexport/internal/render"
	"github.com/alnah/go-taskexport/internal/yamlutil"
)

// MaxFileSize caps item files; descriptions can be long.
const MaxFileSize = 64 << 20

type fileDocument struct {
	Items []fileItem `yaml:"items"`
}

type fileItem struct {
	ID          string           `yaml:"id"`
	Parent      string           `yaml:"parent"`
	Subject     string           `yaml:"subject"`
	Status      string           `yaml:"status"`
	Assignee    string           `yaml:"assignee"`
	Priority    string           `yaml:"priority"`
	Due         string           `yaml:"due"`
	Format      string           `yaml:"format"`
	Description string           `yaml:"description"`
	Attributes  []fileAttribute  `yaml:"attributes"`
	Attachments []fileAttachment `yaml:"attachments"`
}

type fileAttribute struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type fileAttachment struct {
	Name        string `yaml:"name"`
	ContentType string `yaml:"content_type"`
	Path        string `yaml:"path"`
}

// File reads items from a YAML or JSON document with a top-level "items" list.
type File struct {
	Path string
}

// Compile-time interface check.
var _ Source = (*File)(nil)

// NewFile creates a File source.
func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Items(ctx context.Context) ([]render.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc fileDocument
	if err := yamlutil.ReadFileLimit(f.Path, &doc, true, MaxFileSize); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidItems, f.Path, err)
	}

	items := make([]render.Item, len(doc.Items))
	for i, fi := range doc.Items {
		it, err := fi.item()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: item %d: %v", ErrInvalidItems, f.Path, i+1, err)
		}
		items[i] = it
	}
	return items, nil
}

func (*File) Close() error { return nil }

func (fi fileItem) item() (render.Item, error) {
	format, err := markup.ParseFormat(fi.Format)
	if err != nil {
		return render.Item{}, err
	}
	it := render.Item{
		ID:          fi.ID,
		ParentID:    fi.Parent,
		Subject:     fi.Subject,
		Status:      fi.Status,
		Assignee:    fi.Assignee,
		Priority:    fi.Priority,
		Description: fi.Description,
		Format:      format,
	}
	if fi.Due != "" {
		if it.Due, err = dateutil.Parse(fi.Due); err != nil {
			return render.Item{}, err
		}
	}
	for _, a := range fi.Attributes {
		it.Attributes = append(it.Attributes, render.Attribute{Name: a.Name, Value: a.Value})
	}
	for _, a := range fi.Attachments {
		name := a.Name
		if name == "" {
			name = a.Path
		}
		it.Attachments = append(it.Attachments, attach.Attachment{Name: name, ContentType: a.ContentType, Path: a.Path})
	}
	return it, nil
}
