package exporter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/marks/internal/model"
)

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/marks-export-YYYY-MM-DD.html
func DefaultExportPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("marks-export-%s.html", time.Now().Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// HTML renders the node forest as Netscape bookmark HTML, folders as
// nested H3/DL sections.
func HTML(nodes []model.Node) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	writeLevel(&b, nodes, nil, 1)

	b.WriteString("</DL><p>\n")

	return b.String()
}

// writeLevel recursively writes the folders and bookmarks under one parent.
func writeLevel(b *strings.Builder, nodes []model.Node, parentID *string, indent int) {
	prefix := strings.Repeat("    ", indent)

	for _, n := range nodes {
		if !n.IsFolder() || !sameParent(n.ParentID, parentID) {
			continue
		}
		fmt.Fprintf(b, "%s<DT><H3>%s</H3>\n", prefix, html.EscapeString(n.Title))
		fmt.Fprintf(b, "%s<DL><p>\n", prefix)

		folderID := n.ID
		writeLevel(b, nodes, &folderID, indent+1)

		fmt.Fprintf(b, "%s</DL><p>\n", prefix)
	}

	for _, n := range nodes {
		if !n.IsBookmark() || !sameParent(n.ParentID, parentID) {
			continue
		}
		fmt.Fprintf(b,
			"%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\">%s</A>\n",
			prefix,
			html.EscapeString(n.URL),
			n.CreatedAt.Unix(),
			html.EscapeString(n.Title),
		)
	}
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
