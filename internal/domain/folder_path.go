package domain

import (
	"encoding/json"
	"strings"
)

// PathSeparator joins folder path segments on the wire and in folder map keys.
const PathSeparator = "/"

// FolderPath is an ordered list of folder titles from a top-level container
// down to the immediate parent of a bookmark.
//
// On the wire it is a single string with segments joined by PathSeparator.
// A folder title that contains the separator is written verbatim and reads
// back as several segments.
type FolderPath []string

// ParseFolderPath splits a joined path, dropping empty segments.
// Example: "Bookmarks bar//Tech/" -> ["Bookmarks bar", "Tech"]
func ParseFolderPath(s string) FolderPath {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, PathSeparator)
	parts := make(FolderPath, 0, len(raw))
	for _, part := range raw {
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}

// String returns the joined form used on the wire and as a folder map key.
func (p FolderPath) String() string {
	return strings.Join(p, PathSeparator)
}

// IsEmpty reports whether the path designates the default container.
func (p FolderPath) IsEmpty() bool {
	return len(p) == 0
}

// Child returns a new path with title appended. The receiver is never modified.
// An empty title adds no segment, the same way ParseFolderPath drops one, so
// the contents of an untitled folder share its parent's path.
func (p FolderPath) Child(title string) FolderPath {
	out := make(FolderPath, len(p), len(p)+1)
	copy(out, p)
	if title == "" {
		return out
	}
	return append(out, title)
}

// Prefixes returns every cumulative sub-path, shortest first.
// Example: ["A","B","C"] -> [["A"], ["A","B"], ["A","B","C"]]
func (p FolderPath) Prefixes() []FolderPath {
	out := make([]FolderPath, 0, len(p))
	for i := range p {
		out = append(out, p[:i+1:i+1])
	}
	return out
}

func (p FolderPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the joined string form, and also a JSON array of
// segments or null.
func (p *FolderPath) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var segments []string
		if err := json.Unmarshal(data, &segments); err != nil {
			return err
		}
		*p = ParseFolderPath(strings.Join(segments, PathSeparator))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParseFolderPath(s)
	return nil
}
