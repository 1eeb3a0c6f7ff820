package module

import (
	"github.com/sirupsen/logrus"

	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/span"
)

// SourceProvider resolves an `import` module path (e.g. "my_project.util")
// to source text, letting a host embed a multi-file project without the
// compiler touching a filesystem directly (§6.5).
type SourceProvider interface {
	// ReadModule returns the PRQL source for path, or ok=false if no such
	// module exists.
	ReadModule(path string) (src string, ok bool)
}

// MapSourceProvider is the simplest SourceProvider: an in-memory map from
// dotted module path to source text, suitable for embedding a project's
// file set directly in a host program.
type MapSourceProvider map[string]string

func (m MapSourceProvider) ReadModule(path string) (string, bool) {
	src, ok := m[path]
	return src, ok
}

// Loader resolves `import`/cross-file module references against a
// SourceProvider, detecting cycles (§4.3 "cyclic module reference").
type Loader struct {
	provider SourceProvider
	sm       *span.SourceMap
	loading  map[string]bool
	loaded   map[string]span.FileId
	log      *logrus.Logger
}

// NewLoader creates a Loader drawing module sources from provider and
// registering each one's text in sm.
func NewLoader(provider SourceProvider, sm *span.SourceMap) *Loader {
	return &Loader{
		provider: provider, sm: sm,
		loading: map[string]bool{}, loaded: map[string]span.FileId{},
		log: logrus.StandardLogger(),
	}
}

// Begin marks path as in-progress, returning ok=false (and recording a
// KindCyclicModule diagnostic at sp) if path is already being loaded
// higher up the import stack.
func (l *Loader) Begin(path string, sp span.Span, diags *diagnostic.Bag) bool {
	if l.loading[path] {
		diags.Errorf(diagnostic.KindCyclicModule, sp, "", path)
		return false
	}
	l.loading[path] = true
	l.log.Tracef("module: loading %s", path)
	return true
}

// End marks path as finished loading.
func (l *Loader) End(path string) {
	delete(l.loading, path)
}

// Read fetches path's source via the provider and registers it in the
// SourceMap, caching the resulting FileId across repeated imports of the
// same path.
func (l *Loader) Read(path string) (src string, file span.FileId, ok bool) {
	if file, ok := l.loaded[path]; ok {
		src, _ := l.sm.Source(file)
		l.log.Tracef("module: %s already loaded as file %d", path, file)
		return src.Text, file, true
	}
	text, ok := l.provider.ReadModule(path)
	if !ok {
		return "", 0, false
	}
	file = l.sm.AddSource(path, text)
	l.loaded[path] = file
	l.log.Tracef("module: read %s (%d bytes) as file %d", path, len(text), file)
	return text, file, true
}
