package homepage

import (
	"errors"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// Source reads bookmarks.yaml and services.yaml together. Either file may be
// left unconfigured.
type Source struct {
	bookmarks *yamlFile[BookmarksConfig]
	services  *yamlFile[ServicesConfig]
}

func NewSource(bookmarkFile, serviceFile string) *Source {
	s := &Source{}
	if bookmarkFile != "" {
		s.bookmarks = bookmarksFile(bookmarkFile)
	}
	if serviceFile != "" {
		s.services = servicesFile(serviceFile)
	}
	return s
}

// Enabled reports whether at least one file is configured.
func (s *Source) Enabled() bool {
	return s.bookmarks != nil || s.services != nil
}

// Files returns the configured file paths.
func (s *Source) Files() []string {
	var files []string
	if s.bookmarks != nil {
		files = append(files, s.bookmarks.Path())
	}
	if s.services != nil {
		files = append(files, s.services.Path())
	}
	return files
}

// Load maps every configured file under folder. A URL present in both files
// is kept once, bookmarks.yaml first. Failures of one file do not hide the
// records of the other; they are joined into the returned error.
func (s *Source) Load(folder domain.FolderPath) ([]domain.Bookmark, error) {
	mapper := NewMapper(folder)
	var (
		out  []domain.Bookmark
		errs []error
	)

	if s.bookmarks != nil {
		records, err := s.loadBookmarks(mapper)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, records...)
	}
	if s.services != nil {
		records, err := s.loadServices(mapper)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, records...)
	}

	out = lo.UniqBy(out, func(b domain.Bookmark) string { return b.URL })
	return out, errors.Join(errs...)
}

func (s *Source) loadBookmarks(mapper *Mapper) ([]domain.Bookmark, error) {
	config, err := s.bookmarks.Load()
	if err != nil {
		return nil, err
	}
	return mapper.MapBookmarks(config)
}

func (s *Source) loadServices(mapper *Mapper) ([]domain.Bookmark, error) {
	config, err := s.services.Load()
	if err != nil {
		return nil, err
	}
	return mapper.MapServices(config)
}
