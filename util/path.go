package util

import (
	"path"
	"path/filepath"
	"strings"
)

// RelSlash returns p relative to root using forward slashes.
func RelSlash(root, p string) string {
	if root == "" {
		return CleanSlash(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return CleanSlash(p)
	}
	return CleanSlash(rel)
}

// CleanSlash normalizes a project-relative path: forward slashes, no leading
// "./" or "/", no trailing slash. The repository root itself becomes "".
func CleanSlash(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	return p
}
