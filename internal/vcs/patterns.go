package vcs

import (
	"path"
	"strings"
)

// sensitivePatterns match credential-like file names that must never be
// committed by the loop, matched against the path's base name.
var sensitivePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*.crt",
	"id_rsa*",
	"id_ed25519*",
	"*credentials*",
	"*secret*",
	".netrc",
	".npmrc",
}

// artifactDirs are dependency caches and build output directories excluded
// from commits, matched against any path segment.
var artifactDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"out":          true,
	"__pycache__":  true,
	".venv":        true,
	".cache":       true,
	".next":        true,
	"coverage":     true,
}

// ExcludedFromCommit reports whether a path matches the sensitive-file or
// build-artifact pattern sets.
func ExcludedFromCommit(p string) bool {
	base := path.Base(p)
	lower := strings.ToLower(base)

	for _, pattern := range sensitivePatterns {
		if ok, _ := path.Match(pattern, lower); ok {
			return true
		}
	}

	for _, segment := range strings.Split(p, "/") {
		if artifactDirs[segment] {
			return true
		}
	}

	return false
}
