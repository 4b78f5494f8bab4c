package engine

import (
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// Lister is implemented by resource loaders that can enumerate their
// templates.
type Lister interface {
	List() ([]string, error)
}

// FSLoader serves template sources from a file system. Names are slash
// separated paths relative to its root.
type FSLoader struct {
	FS         fs.FS
	Extensions []string
}

// NewDirLoader returns an FSLoader over the directory dir.
func NewDirLoader(dir string, extensions ...string) *FSLoader {
	return &FSLoader{FS: os.DirFS(dir), Extensions: extensions}
}

// Open opens the template called name. Names that are not valid fs paths,
// such as ones climbing out of the root, do not exist.
func (l *FSLoader) Open(name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return l.FS.Open(name)
}

// List returns the names of all files with a template extension, sorted.
func (l *FSLoader) List() ([]string, error) {
	var names []string
	err := fs.WalkDir(l.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if matchExtension(p, l.Extensions) {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func matchExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := path.Ext(name)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// MapLoader serves template sources held in memory.
type MapLoader map[string]string

// Open opens the template called name.
func (m MapLoader) Open(name string) (io.ReadCloser, error) {
	src, ok := m[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(strings.NewReader(src)), nil
}

// List returns the template names, sorted.
func (m MapLoader) List() ([]string, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
