package homepage

// ServicesConfig is services.yaml: a list of groups, each a list of
// single-key maps from service name to its properties.
type ServicesConfig []map[string][]map[string]ServiceProps

// ServiceProps keeps the service fields a bookmark can use. Widgets,
// pings and the other dashboard-only keys are ignored by the decoder.
type ServiceProps struct {
	Href        string `yaml:"href"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// BookmarksConfig is bookmarks.yaml: - Category: [ - Name: [ {abbr, href} ] ]
type BookmarksConfig []map[string][]map[string][]BookmarkEntry

// BookmarkEntry is a single bookmark; Abbr is the title fallback when the
// name is empty.
type BookmarkEntry struct {
	Abbr string `yaml:"abbr"`
	Href string `yaml:"href"`
	Icon string `yaml:"icon,omitempty"`
}
