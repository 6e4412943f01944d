package graph

import (
	"path"
	"strings"
)

// AncestorDirectories returns every proper ancestor directory of p, from the
// immediate parent up to, but excluding, the repository root.
//
//	AncestorDirectories("a/b/c.py") == []string{"a/b", "a"}
func AncestorDirectories(p string) []string {
	var dirs []string
	for dir := path.Dir(p); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		dirs = append(dirs, dir)
	}
	return dirs
}

// parentDir returns the immediate parent of p, or "" at the repository root.
func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// ModuleNamespaceGuess turns a dotted module path into the file path it would
// live at in a project using ext: "pkg.sub" with ".py" becomes "pkg/sub.py".
// The result is only a lookup key; nothing guarantees such a file exists.
func ModuleNamespaceGuess(modulePath, ext string) string {
	return strings.ReplaceAll(modulePath, ".", "/") + ext
}

// Extension returns the lower-cased extension of p used for resolver dispatch.
func Extension(p string) string {
	return strings.ToLower(path.Ext(p))
}

func baseName(p string) string {
	return path.Base(p)
}
