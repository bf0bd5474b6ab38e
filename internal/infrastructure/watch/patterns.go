package watch

import (
	"path/filepath"

	"github.com/felixgeelhaar/swimlane/pkg/storage"
)

// Kind names what a changed file holds.
type Kind string

const (
	KindRecords  Kind = "records"
	KindMetadata Kind = "metadata"
)

// Route maps a glob on the file name to the kind of data it holds.
type Route struct {
	Pattern string
	Kind    Kind
}

// PatternFilter classifies changed paths. Excludes win over routes; the
// first matching route decides the kind.
type PatternFilter struct {
	Routes  []Route
	Exclude []string
}

// NewPatternFilter creates a new pattern filter.
func NewPatternFilter(routes []Route, exclude []string) *PatternFilter {
	return &PatternFilter{
		Routes:  routes,
		Exclude: exclude,
	}
}

// DefaultFilter routes the workspace data files and ignores the temporary
// files written during atomic saves.
func DefaultFilter() *PatternFilter {
	return NewPatternFilter(
		[]Route{
			{Pattern: storage.RecordsFile, Kind: KindRecords},
			{Pattern: storage.MetadataFile, Kind: KindMetadata},
		},
		[]string{"*.tmp", ".*"},
	)
}

// Classify returns the kind of data at path, or false when the path is not
// of interest.
func (f *PatternFilter) Classify(path string) (Kind, bool) {
	base := filepath.Base(path)

	for _, pattern := range f.Exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return "", false
		}
	}
	for _, r := range f.Routes {
		if matched, _ := filepath.Match(r.Pattern, base); matched {
			return r.Kind, true
		}
	}
	return "", false
}
