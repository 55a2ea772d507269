package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/marks/internal/model"
)

// Result represents a fuzzy search match.
type Result struct {
	Node           model.Node
	MatchedIndexes []int
	Score          int
}

// haystacks implements fuzzy.Source over the searchable text of each node.
type haystacks struct {
	nodes []model.Node
	text  []string
}

func (h haystacks) String(i int) string {
	return h.text[i]
}

func (h haystacks) Len() int {
	return len(h.text)
}

// Bookmarks fuzzy-matches the query against each bookmark's title, URL,
// and tags. Folders are not searched. Results come back sorted by match
// score, best first; an empty query returns nil.
func Bookmarks(nodes []model.Node, query string) []Result {
	if query == "" {
		return nil
	}

	var h haystacks
	for _, n := range nodes {
		if !n.IsBookmark() {
			continue
		}
		parts := append([]string{n.Title, n.URL}, n.Tags...)
		h.nodes = append(h.nodes, n)
		h.text = append(h.text, strings.Join(parts, " "))
	}

	matches := fuzzy.FindFrom(query, h)

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Node:           h.nodes[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}
