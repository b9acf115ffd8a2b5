// Package source finds input documents on disk and parses them.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/docchunk/internal/document"
	"github.com/dgallion1/docchunk/internal/parser"
)

// ErrNotFound is returned when the input root does not exist.
var ErrNotFound = errors.New("input path not found")

// Discover lists the supported files under root in lexical order. A root
// that is itself a file is returned as the only entry when supported.
// Hidden directories are skipped.
func Discover(ctx context.Context, root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if !parser.IsSupportedExtension(root) {
			return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(root))
		}
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable entries are skipped.
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if parser.IsSupportedExtension(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load parses every path. Files that cannot be read or parsed are reported
// in the returned errors and left out of the documents; order is otherwise
// preserved.
func Load(ctx context.Context, paths []string, opts parser.Options, log *slog.Logger) ([]document.Document, []error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	var (
		docs []document.Document
		errs []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		doc, err := loadOne(path, opts)
		if err != nil {
			log.Error("skipping unreadable document", "source", path, "error", err)
			errs = append(errs, err)
			continue
		}
		log.Debug("loaded document", "source", path, "title", doc.Title, "bytes", len(doc.Text))
		docs = append(docs, doc)
	}
	return docs, errs
}

func loadOne(path string, opts parser.Options) (document.Document, error) {
	p, err := parser.ForFileWith(path, opts)
	if err != nil {
		return document.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return document.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := p.Parse(f, path)
	if err != nil {
		return document.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}
