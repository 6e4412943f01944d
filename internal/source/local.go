package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sirupsen/logrus"

	"repograph/util"
)

// DefaultMaxFileSize bounds the size of files read by Local.
const DefaultMaxFileSize = 1 << 20

// DefaultIgnoreDirs are directory names Local never descends into.
var DefaultIgnoreDirs = []string{".git", "node_modules", "vendor", "__pycache__", ".venv", "dist", "build"}

// Local reads a repository from a directory on disk.
type Local struct {
	Root        string
	MaxFileSize int64
	IgnoreDirs  []string
}

// NewLocal returns a Local source for root with default limits.
func NewLocal(root string) *Local {
	return &Local{Root: root, MaxFileSize: DefaultMaxFileSize, IgnoreDirs: DefaultIgnoreDirs}
}

// Name returns the absolute repository root.
func (l *Local) Name() string {
	abs, err := filepath.Abs(l.Root)
	if err != nil {
		return l.Root
	}
	return abs
}

// Fetch walks the root and returns every readable text file not excluded by
// the root .gitignore, the ignored directory names or the size limit. Paths
// that are not valid UTF-8 are skipped. Files are returned in path order.
func (l *Local) Fetch(ctx context.Context) ([]File, error) {
	root := l.Name()
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	var gi *ignore.GitIgnore
	if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		gi = compiled
	}

	skipDir := make(map[string]bool, len(l.IgnoreDirs)+1)
	skipDir[".git"] = true
	for _, d := range l.IgnoreDirs {
		skipDir[d] = true
	}

	log := logrus.WithField("root", root)
	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			log.WithError(walkErr).WithField("path", p).Debug("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel := util.RelSlash(root, p)
		if !utf8.ValidString(rel) {
			log.WithField("path", rel).Debug("skipping non-UTF-8 path")
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if skipDir[d.Name()] || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if l.MaxFileSize > 0 && fi.Size() > l.MaxFileSize {
			log.WithField("path", rel).Debug("skipping large file")
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			log.WithError(err).WithField("path", rel).Debug("skipping unreadable file")
			return nil
		}
		if !isText(content) {
			return nil
		}
		files = append(files, File{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
