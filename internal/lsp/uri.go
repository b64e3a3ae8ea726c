package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

// UriToPath returns the local path of a file:// URI, or "" for anything
// else.
func UriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return filepath.FromSlash(u.Path)
}

// IsTreeDocument reports whether uri names a document the server analyses.
func IsTreeDocument(uri string) bool {
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
