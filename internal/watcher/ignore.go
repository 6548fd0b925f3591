package watcher

import (
	"path/filepath"
	"strings"
)

// ignorePatterns excludes hidden files, editor droppings, and partial
// transfers from sync tools and browsers.
var ignorePatterns = []string{
	"._*",
	"*~",
	".#*",
	"#*#",
	"*.tmp",
	"*.temp",
	"*.part",
	"*.partial",
	"*.crdownload",
	"*.download",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"*.swp",
	"*.swx",
}

// Ignored reports whether a file name should never be considered for
// upload. The check is on the base name only.
func Ignored(path string) bool {
	name := filepath.Base(path)
	if name == "" || name == "." {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range ignorePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
