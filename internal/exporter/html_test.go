package exporter

import (
	"strings"
	"testing"
	"time"

	"github.com/nikbrunner/marks/internal/model"
)

func TestHTML_EmptyList(t *testing.T) {
	html := HTML(nil)

	// basic structure even when empty
	if !strings.Contains(html, "<!DOCTYPE NETSCAPE-Bookmark-file-1>") {
		t.Error("expected DOCTYPE declaration")
	}
	if !strings.Contains(html, "<TITLE>Bookmarks</TITLE>") {
		t.Error("expected TITLE element")
	}
	if !strings.Contains(html, "<H1>Bookmarks</H1>") {
		t.Error("expected H1 element")
	}
}

func TestHTML_SingleBookmark(t *testing.T) {
	nodes := []model.Node{{
		ID:        "b1",
		Type:      model.TypeBookmark,
		Title:     "GitHub",
		URL:       "https://github.com",
		CreatedAt: time.Unix(1700000000, 0),
	}}

	html := HTML(nodes)

	if !strings.Contains(html, `<A HREF="https://github.com"`) {
		t.Error("expected bookmark URL")
	}
	if !strings.Contains(html, "GitHub</A>") {
		t.Error("expected bookmark title")
	}
	if !strings.Contains(html, `ADD_DATE="1700000000"`) {
		t.Error("expected ADD_DATE timestamp")
	}
}

func TestHTML_SingleFolder(t *testing.T) {
	nodes := []model.Node{{
		ID:    "f1",
		Type:  model.TypeFolder,
		Title: "Development",
	}}

	html := HTML(nodes)

	if !strings.Contains(html, "<H3") {
		t.Error("expected H3 for folder")
	}
	if !strings.Contains(html, "Development</H3>") {
		t.Error("expected folder name")
	}
}

func TestHTML_BookmarkInFolder(t *testing.T) {
	folderID := "f1"
	nodes := []model.Node{
		{ID: folderID, Type: model.TypeFolder, Title: "Development"},
		{
			ID:        "b1",
			Type:      model.TypeBookmark,
			Title:     "GitHub",
			URL:       "https://github.com",
			ParentID:  &folderID,
			CreatedAt: time.Unix(1700000000, 0),
		},
	}

	html := HTML(nodes)

	// folder opens before its bookmark
	folderIdx := strings.Index(html, "Development</H3>")
	bookmarkIdx := strings.Index(html, "GitHub</A>")

	if folderIdx == -1 {
		t.Fatal("folder not found in output")
	}
	if bookmarkIdx == -1 {
		t.Fatal("bookmark not found in output")
	}
	if folderIdx > bookmarkIdx {
		t.Error("expected folder to come before its bookmark")
	}
}

func TestHTML_NestedFolders(t *testing.T) {
	parentID := "f1"
	childID := "f2"
	nodes := []model.Node{
		{ID: parentID, Type: model.TypeFolder, Title: "Development"},
		{ID: childID, Type: model.TypeFolder, Title: "React", ParentID: &parentID},
		{
			ID:        "b1",
			Type:      model.TypeBookmark,
			Title:     "TanStack Router",
			URL:       "https://tanstack.com/router",
			ParentID:  &childID,
			CreatedAt: time.Unix(1700000000, 0),
		},
	}

	html := HTML(nodes)

	devIdx := strings.Index(html, "Development</H3>")
	reactIdx := strings.Index(html, "React</H3>")
	tanstackIdx := strings.Index(html, "TanStack Router</A>")

	if devIdx == -1 || reactIdx == -1 || tanstackIdx == -1 {
		t.Fatal("missing elements in output")
	}
	if devIdx >= reactIdx || reactIdx >= tanstackIdx {
		t.Error("expected proper nesting order: Development > React > TanStack Router")
	}
}

func TestHTML_EscapesSpecialCharacters(t *testing.T) {
	nodes := []model.Node{{
		ID:        "b1",
		Type:      model.TypeBookmark,
		Title:     "Test <script>alert('xss')</script>",
		URL:       "https://example.com?foo=bar&baz=qux",
		CreatedAt: time.Now(),
	}}

	html := HTML(nodes)

	if strings.Contains(html, "<script>") {
		t.Error("script tag should be escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Error("expected escaped script tag")
	}

	if strings.Contains(html, "foo=bar&baz") {
		t.Error("ampersand should be escaped in URL")
	}
	if !strings.Contains(html, "foo=bar&amp;baz") {
		t.Error("expected escaped ampersand in URL")
	}
}

func TestHTML_MultipleRootItems(t *testing.T) {
	nodes := []model.Node{
		{ID: "f1", Type: model.TypeFolder, Title: "Folder A"},
		{ID: "f2", Type: model.TypeFolder, Title: "Folder B"},
		{
			ID:        "b1",
			Type:      model.TypeBookmark,
			Title:     "Root Bookmark",
			URL:       "https://example.com",
			CreatedAt: time.Now(),
		},
	}

	html := HTML(nodes)

	if !strings.Contains(html, "Folder A</H3>") {
		t.Error("expected Folder A")
	}
	if !strings.Contains(html, "Folder B</H3>") {
		t.Error("expected Folder B")
	}
	if !strings.Contains(html, "Root Bookmark</A>") {
		t.Error("expected root bookmark")
	}
}
