package locate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// CollapseStems reduces a located FileSet to one extension-less entry
// per unique stem. A stem is the file name minus ext with a trailing
// "_<digits>" group removed: sample1_0000.png and sample1_0001.png both
// collapse to sample1. Names without a trailing numeric suffix keep
// their full stem. An empty input collapses to an empty result.
func CollapseStems(files FileSet, ext string) FileSet {
	if len(files) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(files))
	var stems FileSet
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ext)
		stem := filepath.Join(filepath.Dir(f), stripIndexSuffix(name))
		if _, ok := seen[stem]; ok {
			continue
		}
		seen[stem] = struct{}{}
		stems = append(stems, stem)
	}
	sortNatural(stems)
	return stems
}

// ExpandStack returns the physical file family of a collapsed stem in
// ascending numeric-suffix order: every <stem>_<digits><ext> sibling.
// The leading index maps the files back onto the stacked array's
// leading axis, so the order here must match the order used on save.
func ExpandStack(stemPath, ext string) (FileSet, error) {
	dir := filepath.Dir(stemPath)
	stem := filepath.Base(stemPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files FileSet
	prefix := stem + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		idx := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if !allDigits(idx) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Slice(files, func(i, j int) bool {
		return natural.Less(filepath.Base(files[i]), filepath.Base(files[j]))
	})
	return files, nil
}

// stripIndexSuffix removes exactly one trailing "_<digits>" group.
func stripIndexSuffix(name string) string {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return name
	}
	if suffix := name[i+1:]; allDigits(suffix) {
		return name[:i]
	}
	return name
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
