package domain

// Well-known node ids of a local bookmark tree.
const (
	RootID           = "0"
	BookmarksBarID   = "1"
	OtherBookmarksID = "2"

	// DefaultContainerID receives bookmarks whose folder path is empty.
	DefaultContainerID = BookmarksBarID
)

// Node is one node of the local bookmark tree.
// A node with a URL is a bookmark; a node without one is a folder.
type Node struct {
	ID        string  `json:"id"`
	ParentID  string  `json:"parentId,omitempty"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	DateAdded int64   `json:"dateAdded,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n != nil && n.URL == ""
}

// IsContainer reports whether id is the root or one of its fixed containers.
// Containers cannot be renamed, moved or removed.
func IsContainer(id string) bool {
	switch id {
	case RootID, BookmarksBarID, OtherBookmarksID:
		return true
	default:
		return false
	}
}

// NewRootTree returns an empty tree with the root and its two containers.
func NewRootTree(now int64) *Node {
	return &Node{
		ID:        RootID,
		DateAdded: now,
		Children: []*Node{
			{ID: BookmarksBarID, ParentID: RootID, Title: "Bookmarks bar", DateAdded: now},
			{ID: OtherBookmarksID, ParentID: RootID, Title: "Other bookmarks", DateAdded: now},
		},
	}
}
