package domain

// Bookmark is one entry of a flattened bookmark collection.
// It is the record exchanged with the sync server and produced by the tree walker.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is the local store identifier.
	// Empty for records that only exist on the server so far.
	ID string `json:"id,omitempty"`

	// URL is the absolute URL of the bookmark.
	// It is the uniqueness key of a flattened collection.
	URL string `json:"url"`

	// ─────────────────────────────
	// Presentation
	// ─────────────────────────────

	// Title is the display string. It may be empty; the sync core never
	// substitutes a default.
	Title string `json:"title"`

	// FolderPath locates the parent folder, starting at a top-level container.
	// Empty means "directly under the default container".
	FolderPath FolderPath `json:"folderPath"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// DateAdded is the creation time in epoch milliseconds. Informational only.
	DateAdded int64 `json:"dateAdded"`
}

// HasURL reports whether the record carries a usable URL.
func (b Bookmark) HasURL() bool {
	return b.URL != ""
}

// URLSet returns the set of URLs found in bookmarks.
func URLSet(bookmarks []Bookmark) map[string]struct{} {
	set := make(map[string]struct{}, len(bookmarks))
	for _, b := range bookmarks {
		if b.URL == "" {
			continue
		}
		set[b.URL] = struct{}{}
	}
	return set
}
