// Package locate enumerates dataset files on disk. It is the discovery
// half of voxkit: extension plus glob-style pattern matching, optional
// recursion, substring include/exclude filtering against root-relative
// paths, and natural (numeric-aware) ordering so "file_2" sorts before
// "file_10".
package locate

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// FileSet is an ordered sequence of absolute file paths. For stacked
// data it holds one extension-less path per logical sample stem.
type FileSet []string

// Options tunes a Locate call. The zero value matches every file with
// the requested extension directly under the root.
type Options struct {
	// Pattern is a glob fragment matched against the file name without
	// its extension. A pattern with no wildcard is treated as a
	// required fragment and wildcarded on the left.
	Pattern string
	// IncludeNames keeps only files whose root-relative path contains
	// at least one of these substrings.
	IncludeNames []string
	// ExcludeNames drops files whose root-relative path contains any of
	// these substrings. Exclusion wins over inclusion.
	ExcludeNames []string
	// Recursive searches subdirectories instead of only direct
	// children.
	Recursive bool
}

// Locate returns the naturally sorted files under root carrying ext.
// An empty root or extension, or a root that does not exist, yields an
// empty set and no error: zero matches is a valid outcome, not a
// failure. Other filesystem errors propagate unchanged.
func Locate(root, ext string, opts Options) (FileSet, error) {
	files, root, err := collect(root, ext, opts)
	if err != nil {
		return nil, err
	}
	files = filterNames(files, root, opts.IncludeNames, opts.ExcludeNames)
	sortNatural(files)
	return files, nil
}

// collect gathers the matching files without the include/exclude
// filter, returning the absolutized root alongside.
func collect(root, ext string, opts Options) (FileSet, string, error) {
	if root == "" || ext == "" {
		return nil, root, nil
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	pattern := globPattern(opts.Pattern, ext)

	var files FileSet
	if opts.Recursive {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			if matchName(d.Name(), pattern, ext) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, root, err
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, root, nil
			}
			return nil, root, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if matchName(e.Name(), pattern, ext) {
				files = append(files, filepath.Join(root, e.Name()))
			}
		}
	}
	return files, root, nil
}

// LocateStacked locates files like Locate and collapses the result to
// one extension-less entry per unique stem (see CollapseStems). The
// include/exclude filter runs against the collapsed stems, not the
// individual stack members, so a numeric include token selects samples
// rather than matching every zero-padded member suffix.
func LocateStacked(root, ext string, opts Options) (FileSet, error) {
	files, root, err := collect(root, ext, opts)
	if err != nil {
		return nil, err
	}
	stems := CollapseStems(files, ext)
	stems = filterNames(stems, root, opts.IncludeNames, opts.ExcludeNames)
	sortNatural(stems)
	return stems, nil
}

// globPattern turns the user pattern into a glob over the full file
// name: no pattern matches everything, a pattern without a wildcard is
// treated as a required fragment with an implicit left wildcard, and a
// pattern that already contains one is used verbatim.
func globPattern(pattern, ext string) string {
	switch {
	case pattern == "":
		pattern = "*"
	case !strings.Contains(pattern, "*"):
		pattern = "*" + pattern
	}
	return pattern + ext
}

func matchName(name, pattern, ext string) bool {
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		return false
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// filterNames applies the include/exclude substring filters against
// root-relative paths. A file survives only if it matches at least one
// include substring (or includes are absent) and no exclude substring.
func filterNames(files FileSet, root string, include, exclude []string) FileSet {
	if len(include) == 0 && len(exclude) == 0 {
		return files
	}
	kept := files[:0]
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		if len(include) > 0 && !containsAny(rel, include) {
			continue
		}
		if containsAny(rel, exclude) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

func sortNatural(files FileSet) {
	sort.Slice(files, func(i, j int) bool {
		return natural.Less(filepath.Base(files[i]), filepath.Base(files[j]))
	})
}

// NameFromPath returns file's path relative to root, optionally with
// ext trimmed.
func NameFromPath(root, file, ext string, includeExt bool) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	if !includeExt {
		rel = strings.TrimSuffix(rel, ext)
	}
	return rel
}

// PathFromName joins root and name, appending ext when name does not
// already carry it.
func PathFromName(root, name, ext string) string {
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	return filepath.Join(root, name)
}
