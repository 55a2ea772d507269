package model

import "time"

// NodeType tags a Node as either a bookmark leaf or a folder container.
type NodeType string

const (
	TypeBookmark NodeType = "bookmark"
	TypeFolder   NodeType = "folder"
)

// Node is a single entry in the bookmark forest: a bookmark (leaf) or a
// folder (container). The forest shape comes from ParentID pointers over a
// flat list; nil means root level. Folders never carry URL, category, or
// access metadata.
type Node struct {
	ID           string     `json:"id"`
	Type         NodeType   `json:"type"`
	Title        string     `json:"title"`
	URL          string     `json:"url,omitempty"`
	ParentID     *string    `json:"parentId"` // nil = root level
	CategoryID   string     `json:"categoryId,omitempty"`
	Tags         []string   `json:"tags"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
	AccessCount  *int       `json:"accessCount,omitempty"`
	Description  string     `json:"description,omitempty"`
}

// IsFolder reports whether the node is a folder container.
func (n *Node) IsFolder() bool {
	return n.Type == TypeFolder
}

// IsBookmark reports whether the node is a bookmark leaf.
func (n *Node) IsBookmark() bool {
	return n.Type == TypeBookmark
}

// NewNodeParams holds parameters for creating a new Node.
type NewNodeParams struct {
	Type        NodeType
	Title       string
	URL         string
	ParentID    *string
	CategoryID  string
	Tags        []string
	Description string
}

// NewNode creates a Node with a generated UUID and timestamps. Bookmark
// nodes start with lastAccessed set and accessCount at zero; folders carry
// neither.
func NewNode(params NewNodeParams) Node {
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	now := time.Now()
	n := Node{
		ID:          GenerateUUID(),
		Type:        params.Type,
		Title:       params.Title,
		ParentID:    params.ParentID,
		Tags:        tags,
		CreatedAt:   now,
		Description: params.Description,
	}

	if params.Type == TypeBookmark {
		n.URL = params.URL
		n.CategoryID = params.CategoryID
		last := now
		n.LastAccessed = &last
		count := 0
		n.AccessCount = &count
	}

	return n
}
