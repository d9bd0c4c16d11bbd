package tree

import (
	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// Folder describes one folder for listings.
type Folder struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Path      domain.FolderPath `json:"path"`
	Depth     int               `json:"depth"`
	Bookmarks int               `json:"bookmarks"` // direct children only
}

// Folders lists every folder under root in walk order.
func Folders(root *domain.Node) []Folder {
	if root == nil {
		return nil
	}
	var out []Folder

	var walk func(n *domain.Node, path domain.FolderPath, depth int)
	walk = func(n *domain.Node, path domain.FolderPath, depth int) {
		if n == nil || n.URL != "" {
			return
		}
		current := path.Child(n.Title)
		direct := 0
		for _, child := range n.Children {
			if child.URL != "" {
				direct++
			}
		}
		out = append(out, Folder{
			ID:        n.ID,
			Title:     n.Title,
			Path:      current,
			Depth:     depth,
			Bookmarks: direct,
		})
		for _, child := range n.Children {
			walk(child, current, depth+1)
		}
	}

	for _, child := range root.Children {
		walk(child, nil, 0)
	}
	return out
}

// Count returns the number of bookmark nodes under n, duplicates included.
func Count(n *domain.Node) int {
	if n == nil {
		return 0
	}
	if n.URL != "" {
		return 1
	}
	total := 0
	for _, child := range n.Children {
		total += Count(child)
	}
	return total
}

// Find returns the node with the given id, or nil.
func Find(n *domain.Node, id string) *domain.Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := Find(child, id); found != nil {
			return found
		}
	}
	return nil
}

// Clone returns a deep copy of n.
func Clone(n *domain.Node) *domain.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*domain.Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = Clone(child)
		}
	}
	return &out
}
