// Package tree walks local bookmark trees. It is the single place that knows
// how a tree maps to flattened records and folder paths.
package tree

import (
	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// Flatten walks root depth-first, pre-order, and returns one record per bookmark.
//
// The root's own title is never part of a folder path; top-level containers are.
// Nodes with neither a URL nor children are skipped. When the same URL occurs
// twice, the first occurrence wins.
func Flatten(root *domain.Node) []domain.Bookmark {
	if root == nil {
		return nil
	}

	out := make([]domain.Bookmark, 0, 64)
	seen := make(map[string]struct{}, 64)

	var walk func(n *domain.Node, path domain.FolderPath)
	walk = func(n *domain.Node, path domain.FolderPath) {
		if n == nil {
			return
		}
		if n.URL != "" {
			if _, dup := seen[n.URL]; dup {
				return
			}
			seen[n.URL] = struct{}{}
			out = append(out, domain.Bookmark{
				ID:         n.ID,
				URL:        n.URL,
				Title:      n.Title,
				FolderPath: path,
				DateAdded:  n.DateAdded,
			})
			return
		}
		if len(n.Children) == 0 {
			return
		}
		childPath := path.Child(n.Title)
		for _, child := range n.Children {
			walk(child, childPath)
		}
	}

	for _, child := range root.Children {
		walk(child, nil)
	}
	return out
}

// FolderMap maps a joined folder path to the id of the folder at that path.
// It is a per-merge cache: build it from the live tree, then keep it current
// with Set as folders are created.
type FolderMap map[string]string

// Lookup returns the folder id recorded for path.
func (m FolderMap) Lookup(path domain.FolderPath) (string, bool) {
	id, ok := m[path.String()]
	return id, ok
}

// Set records the folder id for path.
func (m FolderMap) Set(path domain.FolderPath, id string) {
	m[path.String()] = id
}

// BuildFolderMap records every folder of root, nested ones included.
// The root itself is never a key. When two sibling folders share a title the
// first one in walk order is kept.
func BuildFolderMap(root *domain.Node) FolderMap {
	m := make(FolderMap, 32)
	if root == nil {
		return m
	}

	var walk func(n *domain.Node, path domain.FolderPath)
	walk = func(n *domain.Node, path domain.FolderPath) {
		if n == nil || n.URL != "" {
			return
		}
		current := path.Child(n.Title)
		key := current.String()
		if _, exists := m[key]; !exists && key != "" {
			m[key] = n.ID
		}
		for _, child := range n.Children {
			walk(child, current)
		}
	}

	for _, child := range root.Children {
		walk(child, nil)
	}
	return m
}
