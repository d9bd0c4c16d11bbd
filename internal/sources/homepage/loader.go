package homepage

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// templateVar matches Homepage template variables such as {{HOMEPAGE_VAR_URL}}
var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// yamlFile decodes one Homepage configuration file into T.
type yamlFile[T any] struct {
	path string
	kind string // "bookmarks" | "services", used in errors
}

func (f yamlFile[T]) Path() string { return f.path }

func (f yamlFile[T]) Load() (T, error) {
	var config T
	data, err := os.ReadFile(f.path)
	if err != nil {
		return config, fmt.Errorf("failed to read %s file: %w", f.kind, err)
	}
	if err := yaml.Unmarshal(stripTemplateVariables(data), &config); err != nil {
		return config, fmt.Errorf("failed to parse %s yaml: %w", f.kind, err)
	}
	return config, nil
}

func servicesFile(path string) *yamlFile[ServicesConfig] {
	return &yamlFile[ServicesConfig]{path: path, kind: "services"}
}

func bookmarksFile(path string) *yamlFile[BookmarksConfig] {
	return &yamlFile[BookmarksConfig]{path: path, kind: "bookmarks"}
}

// stripTemplateVariables replaces Homepage template variables with an empty
// string, so a templated href maps to no URL and the entry is skipped.
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
