package parse

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// globFiles implements the glob(...) builtin: it walks baseDir and
// returns the relative paths of regular files matching any of
// patterns and none of excludes. "**" matches any number of path
// segments, "*" matches within a single segment, mirroring the
// glob() builtin's semantics in the teacher's asp dialect. Grounded
// on godirwalk usage already established for source hashing
// (fingerprint.DirHash).
func globFiles(baseDir string, patterns, excludes []string) ([]string, error) {
	includeRe := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		includeRe[i] = globToRegexp(p)
	}
	excludeRe := make([]*regexp.Regexp, len(excludes))
	for i, p := range excludes {
		excludeRe[i] = globToRegexp(p)
	}

	var matches []string
	err := godirwalk.Walk(baseDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(baseDir, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !matchesAny(includeRe, rel) {
				return nil
			}
			if matchesAny(excludeRe, rel) {
				return nil
			}
			matches = append(matches, rel)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// globToRegexp translates a glob pattern into an anchored regexp.
func globToRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteByte('^')
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				// "**/" matches zero or more path segments; bare "**"
				// matches anything including separators.
				if i+2 < len(runes) && runes[i+2] == '/' {
					sb.WriteString("(.*/)?")
					i += 2
				} else {
					sb.WriteString(".*")
					i++
				}
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		case '.', '+', '(', ')', '|', '^', '$', '{', '}', '[', ']', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(runes[i])
		default:
			sb.WriteRune(runes[i])
		}
	}
	sb.WriteByte('$')
	return regexp.MustCompile(sb.String())
}
