package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SupportedExtensions is the allow-list of image extensions, lowercase.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// IsSupported reports whether path has an allowed image extension.
// The comparison is case-insensitive.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListMedia returns the supported image files directly inside folder,
// sorted by name, as absolute paths. Subdirectories are not descended into.
func ListMedia(folder string) ([]string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", folder, err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", folder, err)
	}

	var paths []string
	for _, entry := range entries {
		// Skip directories
		if entry.IsDir() {
			continue
		}
		if !IsSupported(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(abs, entry.Name()))
	}

	sort.Strings(paths)
	return paths, nil
}
