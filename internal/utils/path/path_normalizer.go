// Package pathutils normalizes user supplied filesystem paths.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	homeDirectorySymbolConstant = "~"
)

// HomeDirectoryResolver returns the current user's home directory.
type HomeDirectoryResolver func() (string, error)

// PathNormalizer trims, expands a leading tilde, and makes paths absolute.
type PathNormalizer struct {
	resolveHomeDirectory HomeDirectoryResolver
}

// NewPathNormalizer constructs a PathNormalizer. A nil resolver selects os.UserHomeDir.
func NewPathNormalizer(resolveHomeDirectory HomeDirectoryResolver) *PathNormalizer {
	if resolveHomeDirectory == nil {
		resolveHomeDirectory = os.UserHomeDir
	}
	return &PathNormalizer{resolveHomeDirectory: resolveHomeDirectory}
}

// Normalize returns the absolute, cleaned form of rawPath. Blank input yields an empty string.
func (normalizer *PathNormalizer) Normalize(rawPath string) (string, error) {
	trimmedPath := strings.TrimSpace(rawPath)
	if len(trimmedPath) == 0 {
		return "", nil
	}

	if trimmedPath == homeDirectorySymbolConstant || strings.HasPrefix(trimmedPath, homeDirectorySymbolConstant+string(filepath.Separator)) {
		homeDirectory, homeError := normalizer.resolveHomeDirectory()
		if homeError != nil {
			return "", homeError
		}
		trimmedPath = filepath.Join(homeDirectory, strings.TrimPrefix(trimmedPath, homeDirectorySymbolConstant))
	}

	return filepath.Abs(trimmedPath)
}
