// Package importer reads browser-exported bookmark files.
package importer

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Draft is a bookmark lifted out of a Netscape export, not yet stored.
// Category carries the name of the nearest enclosing folder header as a
// best-effort grouping; the caller resolves or creates the matching
// category at import time.
type Draft struct {
	Title     string
	URL       string
	Category  string
	CreatedAt time.Time
}

// ParseNetscape parses Netscape bookmark HTML into flat drafts. Browser
// folder nesting is not reproduced; each anchor gets the innermost H3
// header above it as its category name. Anchors without an HREF are
// skipped, missing titles fall back to the URL, and ADD_DATE seconds are
// honored when present.
func ParseNetscape(r io.Reader) ([]Draft, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var drafts []Draft

	// Track the enclosing folder headers; the innermost wins.
	var headerStack []string
	var pendingHeader string

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				pendingHeader = textContent(n)
				return // don't recurse into H3

			case "a":
				href := attr(n, "href")
				if href == "" {
					// skip anchors without a URL
					return
				}

				title := textContent(n)
				if title == "" {
					title = href
				}

				var category string
				if len(headerStack) > 0 {
					category = headerStack[len(headerStack)-1]
				}

				createdAt := time.Now()
				if addDate := attr(n, "add_date"); addDate != "" {
					if ts, err := strconv.ParseInt(addDate, 10, 64); err == nil {
						createdAt = time.Unix(ts, 0)
					}
				}

				drafts = append(drafts, Draft{
					Title:     title,
					URL:       href,
					Category:  category,
					CreatedAt: createdAt,
				})
				return // don't recurse into A

			case "dl":
				// A DL opens the contents of the preceding header.
				pushed := false
				if pendingHeader != "" {
					headerStack = append(headerStack, pendingHeader)
					pendingHeader = ""
					pushed = true
				}

				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				if pushed {
					headerStack = headerStack[:len(headerStack)-1]
				}
				return // children handled above
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return drafts, nil
}

// textContent returns the flattened text of a node.
func textContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// attr returns the value of an attribute, case-insensitive.
func attr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if strings.ToLower(a.Key) == key {
			return a.Val
		}
	}
	return ""
}
