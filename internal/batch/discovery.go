package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/utils"
)

// Default include patterns per input kind.
var (
	RecordPatterns = []string{"*.yaml", "*.yml", "*.json"}
	LabelPatterns  = []string{"*.txt"}
)

// DiscoverRecords lists the junction records below paths using the
// discovery settings of config.
func DiscoverRecords(paths []string, config *Config) ([]string, error) {
	include := config.IncludePatterns
	if len(include) == 0 {
		include = RecordPatterns
	}
	files, err := discoverFiles(paths, config.Recursive, include, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover junction records: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no junction records", ErrNoFiles)
	}
	return files, nil
}

// discoverFiles finds all files below args matching the given patterns.
// Explicit file arguments are filtered by the same patterns.
func discoverFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var found []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			found = append(found, files...)
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			found = append(found, arg)
		}
	}

	return found, nil
}

// discoverInDirectory walks dir, descending into subdirectories only when
// recursive is set. Files come back in lexical order.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}

		return nil
	}

	if err := filepath.Walk(dir, walkFn); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks the base name of path against shell patterns.
// Matching ignores case so "*.yaml" also selects "P1.YAML".
func matchesAnyPattern(path string, patterns []string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(strings.ToLower(pattern), base); matched {
			return true
		}
	}
	return false
}

// stem returns the file name without directory and extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// findImage looks for an image named stem.<ext> in dir, trying every
// supported extension in both cases. It returns "" when there is none.
func findImage(dir, name string) string {
	for _, ext := range utils.SupportedImageExtensions {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			if p := filepath.Join(dir, name+e); fileExists(p) {
				return p
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
