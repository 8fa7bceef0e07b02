// Package loader reads target source files from disk.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cloo-solutions/ownership-validator/internal/domain"
)

// Filter selects files when the target is a directory. Patterns use doublestar
// syntax against slash-separated paths relative to the root.
type Filter struct {
	Include []string
	Exclude []string
}

// DefaultFilter skips VCS metadata and vendored dependencies.
func DefaultFilter() Filter {
	return Filter{
		Include: []string{"**"},
		Exclude: []string{"**/.git/**", "**/vendor/**", "**/node_modules/**"},
	}
}

// Load reads a single file. The returned text is the file's raw content.
func Load(path string) (domain.SourceDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.SourceDocument{}, statError(path, err)
	}
	if info.IsDir() {
		return domain.SourceDocument{}, domain.InputError(domain.ErrCodeInvalidInput,
			fmt.Sprintf("path '%s' is a directory", path), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, statError(path, err)
	}
	if !utf8.Valid(data) {
		return domain.SourceDocument{}, domain.InputError(domain.ErrCodeRead,
			fmt.Sprintf("path '%s' is not valid UTF-8 text", path), nil)
	}
	if strings.TrimSpace(string(data)) == "" {
		return domain.SourceDocument{}, domain.InputError(domain.ErrCodeEmptyInput,
			fmt.Sprintf("path '%s' is empty", path), nil)
	}

	return domain.NewSourceDocument(path, string(data)), nil
}

// LoadTree reads every text file under root accepted by filter, sorted by path.
// Binary, non-UTF-8 and empty files are skipped.
func LoadTree(root string, filter Filter) ([]domain.SourceDocument, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, statError(root, err)
	}
	if !info.IsDir() {
		return nil, domain.InputError(domain.ErrCodeInvalidInput,
			fmt.Sprintf("path '%s' is not a directory", root), nil)
	}
	if len(filter.Include) == 0 {
		filter.Include = DefaultFilter().Include
	}

	var docs []domain.SourceDocument
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && excludedDir(filter.Exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !matchAny(filter.Include, rel) || matchAny(filter.Exclude, rel) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !isText(data) || strings.TrimSpace(string(data)) == "" {
			return nil
		}
		docs = append(docs, domain.NewSourceDocument(path, string(data)))
		return nil
	})
	if err != nil {
		return nil, domain.InputError(domain.ErrCodeRead, fmt.Sprintf("failed to read '%s'", root), err)
	}
	if len(docs) == 0 {
		return nil, domain.InputError(domain.ErrCodeEmptyInput,
			fmt.Sprintf("no readable source files found in '%s'", root), nil)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// LoadTarget loads a file, or every matching file when path is a directory.
func LoadTarget(path string, filter Filter) ([]domain.SourceDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}
	if info.IsDir() {
		return LoadTree(path, filter)
	}
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return []domain.SourceDocument{doc}, nil
}

func statError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return domain.InputError(domain.ErrCodeFileNotFound, fmt.Sprintf("path '%s' not found", path), err)
	case errors.Is(err, fs.ErrPermission):
		return domain.InputError(domain.ErrCodeRead, fmt.Sprintf("permission denied reading '%s'", path), err)
	default:
		return domain.InputError(domain.ErrCodeRead, fmt.Sprintf("failed to read '%s'", path), err)
	}
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// excludedDir reports whether a "dir/**" exclude pattern prunes the directory.
func excludedDir(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/**") {
			continue
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
			return true
		}
	}
	return false
}

func isText(data []byte) bool {
	return bytes.IndexByte(data, 0) < 0 && utf8.Valid(data)
}
