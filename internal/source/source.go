// Package source acquires repository files from the local filesystem or
// from GitHub.
package source

import (
	"context"
	"strings"
	"unicode/utf8"
)

// File is one repository file: its forward-slash path relative to the
// repository root and its raw content.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// Source supplies the files of one repository.
type Source interface {
	// Name identifies the repository, e.g. a directory path or owner/repo.
	Name() string
	// Fetch returns every text file of the repository.
	Fetch(ctx context.Context) ([]File, error)
}

// isText reports whether content is valid UTF-8. Binary files and other
// encodings are skipped by every source.
func isText(content []byte) bool {
	return utf8.Valid(content)
}

// Options configure the sources built by Open.
type Options struct {
	GitHubToken  string
	GitHubAPIURL string
	// Subdirectory restricts a GitHub source to one directory.
	Subdirectory string
	MaxFileSize  int64
	IgnoreDirs   []string
}

// IsGitHubURL reports whether target names a GitHub repository.
func IsGitHubURL(target string) bool {
	return strings.HasPrefix(strings.TrimSpace(target), "https://github.com/")
}

// Open returns the source for target: a GitHub source for a
// https://github.com URL, a local directory source otherwise.
func Open(target string, o Options) (Source, error) {
	if IsGitHubURL(target) {
		var opts []GitHubOption
		if o.GitHubAPIURL != "" {
			opts = append(opts, WithAPIURL(o.GitHubAPIURL))
		}
		if o.Subdirectory != "" {
			opts = append(opts, WithSubdirectory(o.Subdirectory))
		}
		if o.MaxFileSize > 0 {
			opts = append(opts, WithMaxFileSize(o.MaxFileSize))
		}
		return NewGitHub(target, o.GitHubToken, opts...)
	}
	l := NewLocal(target)
	if o.MaxFileSize > 0 {
		l.MaxFileSize = o.MaxFileSize
	}
	if len(o.IgnoreDirs) > 0 {
		l.IgnoreDirs = o.IgnoreDirs
	}
	return l, nil
}
