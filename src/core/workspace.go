package core

import (
	"os"
	"path/filepath"
)

// FindProjectRoot walks upward from startDir looking for a YRoot file,
// mirroring please's MustFindRepoRoot search for a .plzconfig/.plzroot.
// Returns the absolute project root path.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, YRootFileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", NewError(ParseError, "not inside a ybt project (no %s found above %s)", YRootFileName, startDir)
		}
		dir = parent
	}
}

// FindBuildModules walks the project tree rooted at dir looking for
// directories containing a file named buildFileName, returning their
// module paths relative to root. Used by the Seeded Crawler's `**:*`
// expansion (§4.4).
func FindBuildModules(root, dir, buildFileName string) ([]string, error) {
	var modules []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if filepath.Base(path) == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) == buildFileName {
			rel, err := filepath.Rel(root, filepath.Dir(path))
			if err != nil {
				return err
			}
			modules = append(modules, normalizePath(rel))
		}
		return nil
	})
	return modules, err
}
