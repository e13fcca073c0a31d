package image

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docker/docker/builder/dockerignore"
	"github.com/docker/docker/pkg/fileutils"
)

// DockerIgnoreFile lists build context exclusions.
const DockerIgnoreFile = ".dockerignore"

// excludePatterns reads .dockerignore in dir. Patterns are anchored at the
// context root as docker build does; the ignore file and keep files are
// re-included.
func excludePatterns(dir string, keep ...string) ([]string, error) {
	file, err := os.Open(filepath.Join(dir, DockerIgnoreFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	patterns, err := dockerignore.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("invalid %v: %w", DockerIgnoreFile, err)
	}
	for _, name := range append([]string{DockerIgnoreFile}, keep...) {
		patterns = append(patterns, "!"+filepath.ToSlash(name))
	}
	return patterns, nil
}

// contextFiles returns slash separated paths of the regular files under dir
// that docker build would send.
func contextFiles(dir string, keep ...string) ([]string, error) {
	patterns, err := excludePatterns(dir, keep...)
	if err != nil {
		return nil, err
	}
	matcher, err := fileutils.NewPatternMatcher(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid %v: %w", DockerIgnoreFile, err)
	}
	var files []string
	err = filepath.WalkDir(dir, func(location string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, location)
		if err != nil || rel == "." {
			return err
		}
		excluded, err := matcher.Matches(rel)
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if excluded && !matcher.Exclusions() {
				return filepath.SkipDir
			}
			return nil
		}
		if !excluded {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files, err
}
