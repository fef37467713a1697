package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"textdedup/internal/domain"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// Scanner lists and reads text documents under a root directory.
type Scanner struct {
	extensions []string
}

// NewScanner creates a scanner matching the given extensions
// case-insensitively. No extensions means ".txt".
func NewScanner(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = []string{".txt"}
	}
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &Scanner{extensions: exts}
}

// Extensions returns the normalized extensions the scanner matches.
func (s *Scanner) Extensions() []string { return s.extensions }

// Matches reports whether path has one of the scanner's extensions.
func (s *Scanner) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// List returns the slash-separated paths of matching files under root,
// relative to root and sorted lexicographically. Directories listed in
// exclude are not descended into. Subdirectories that cannot be read are
// skipped and returned as ErrUnreadableFile failures; only a bad root is
// an error.
func (s *Scanner) List(root string, exclude ...string) ([]string, []*domain.FileError, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("input root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("input root %s is not a directory", root)
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = struct{}{}
		}
	}

	var (
		paths   []string
		skipped []*domain.FileError
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			skipped = append(skipped, domain.NewFileError(filepath.ToSlash(rel), domain.ErrUnreadableFile, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil {
				if _, ok := skip[abs]; ok {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() || !s.Matches(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)
	return paths, skipped, nil
}

// Read loads one document. Read and decoding failures are returned as a
// *domain.FileError of kind ErrUnreadableFile.
func (s *Scanner) Read(root, rel string) (domain.Document, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	data, err := os.ReadFile(abs)
	if err != nil {
		return domain.Document{}, domain.NewFileError(rel, domain.ErrUnreadableFile, err)
	}
	if !utf8.Valid(data) {
		return domain.Document{}, domain.NewFileError(rel, domain.ErrUnreadableFile, errInvalidUTF8)
	}
	content := string(data)
	return domain.Document{
		RelPath:   rel,
		AbsPath:   abs,
		Content:   content,
		SizeBytes: len(data),
		CharCount: utf8.RuneCountInString(content),
	}, nil
}
