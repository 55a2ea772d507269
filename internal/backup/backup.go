// Package backup writes and restores JSON snapshots of the whole vault.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/model"
)

// Version of the combined document format. Version 1 keyed click stats by
// bookmark title; version 2 keys them by node id.
const Version = "2"

// Document is the combined backup format.
type Document struct {
	Bookmarks  []model.Node     `json:"bookmarks"`
	Categories []model.Category `json:"categories,omitempty"`
	Clicks     map[string]int   `json:"bookmarkClicks,omitempty"`
	ExportDate time.Time        `json:"exportDate"`
	Version    string           `json:"version"`
}

// Snapshot assembles a combined document from the current lists.
func Snapshot(nodes []model.Node, categories []model.Category, clicks map[string]int) Document {
	return Document{
		Bookmarks:  nodes,
		Categories: categories,
		Clicks:     clicks,
		ExportDate: time.Now(),
		Version:    Version,
	}
}

// WriteCombined writes the document to path as one file.
func WriteCombined(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}

// WriteSplit writes the document as two files in dir, the layout manual
// exports use: <stamp>-bookmarks.json carries bookmarks plus click stats,
// <stamp>-categories.json carries the categories. Returns the paths.
func WriteSplit(dir string, doc Document) ([]string, error) {
	stamp := doc.ExportDate.Format("20060102-150405")

	bookmarksDoc := Document{
		Bookmarks:  doc.Bookmarks,
		Clicks:     doc.Clicks,
		ExportDate: doc.ExportDate,
		Version:    doc.Version,
	}
	categoriesDoc := Document{
		Bookmarks:  []model.Node{},
		Categories: doc.Categories,
		ExportDate: doc.ExportDate,
		Version:    doc.Version,
	}

	paths := []string{
		filepath.Join(dir, stamp+"-bookmarks.json"),
		filepath.Join(dir, stamp+"-categories.json"),
	}
	if err := WriteCombined(paths[0], bookmarksDoc); err != nil {
		return nil, err
	}
	if err := WriteCombined(paths[1], categoriesDoc); err != nil {
		return nil, err
	}
	return paths, nil
}

// Parse decodes a backup file. It accepts the combined document and, for
// exports that predate it, a bare JSON array of bookmark nodes. Anything
// else is a descriptive error and nothing from the file is used.
func Parse(data []byte) (Document, error) {
	trimmed := firstByte(data)
	switch trimmed {
	case '[':
		var nodes []model.Node
		if err := json.Unmarshal(data, &nodes); err != nil {
			return Document{}, fmt.Errorf("%w: not a bookmark array: %v", apperr.ErrInvalidInput, err)
		}
		// very old exports carry no type field
		for i := range nodes {
			if nodes[i].Type == "" {
				nodes[i].Type = model.TypeBookmark
			}
		}
		doc := Document{Bookmarks: nodes, Version: "1"}
		return doc, validate(doc)

	case '{':
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("%w: not a backup document: %v", apperr.ErrInvalidInput, err)
		}
		if doc.Version == "" {
			doc.Version = "1"
		}
		return doc, validate(doc)

	default:
		return Document{}, fmt.Errorf("%w: expected a backup document or bookmark array", apperr.ErrInvalidInput)
	}
}

// ParseFile reads and parses one backup file.
func ParseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading backup %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// validate rejects documents whose nodes could not round-trip through the
// repository. A failed document contributes nothing.
func validate(doc Document) error {
	seen := make(map[string]bool, len(doc.Bookmarks))
	for i, n := range doc.Bookmarks {
		if n.ID == "" {
			return fmt.Errorf("%w: bookmark %d has no id", apperr.ErrInvalidInput, i)
		}
		if n.Type != model.TypeBookmark && n.Type != model.TypeFolder {
			return fmt.Errorf("%w: bookmark %d has unknown type %q", apperr.ErrInvalidInput, i, n.Type)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate id %q within one file", apperr.ErrInvalidInput, n.ID)
		}
		seen[n.ID] = true
	}
	for i, c := range doc.Categories {
		if c.ID == "" {
			return fmt.Errorf("%w: category %d has no id", apperr.ErrInvalidInput, i)
		}
	}
	return nil
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
