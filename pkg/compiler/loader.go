package compiler

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/CTAG07/Quicksilver/pkg/parser"
)

// sourceLoader parses and compiles templates on every call. It keeps no
// cache; the engine package provides a caching TemplateLoader.
type sourceLoader struct {
	opts Options
}

// NewLoader returns a TemplateLoader that reads sources through the
// ResourceLoader handed to Load and compiles them with opts. Included
// templates resolve their own includes through the same loader.
func NewLoader(opts Options) TemplateLoader {
	l := &sourceLoader{}
	opts.Name = ""
	opts.Loader = l
	l.opts = opts
	return l
}

func (l *sourceLoader) Load(name string, res ResourceLoader) (*Template, error) {
	src, err := ReadSource(name, res)
	if err != nil {
		return nil, err
	}
	return l.LoadInline(name, src)
}

func (l *sourceLoader) LoadInline(name, source string) (*Template, error) {
	tmpl, err := parser.Parse(name, source)
	if err != nil {
		return nil, err
	}
	return Compile(tmpl, l.opts)
}

// ReadSource reads the source of name through res. A missing resource, or a
// nil res, yields an error wrapping ErrTemplateNotFound.
func ReadSource(name string, res ResourceLoader) (string, error) {
	if res == nil {
		return "", fmt.Errorf("%w: %s (no resource loader)", ErrTemplateNotFound, name)
	}
	rc, err := res.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrTemplateNotFound) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}
