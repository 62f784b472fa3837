package ingest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/elsai-console/constants"
)

// AllowedExt reports whether ext (with or without the dot) is an accepted upload extension.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

// CollectStats summarizes a CollectFiles walk.
type CollectStats struct {
	Scanned int
	Matched int
	Skipped int
	Failed  int
}

// CollectFiles expands each argument into the files to process: a file is
// taken as is, a directory is walked recursively for pdf/csv files. Hidden
// entries are skipped when skipHidden is set. Results are sorted and unique.
func CollectFiles(args []string, skipHidden bool) ([]string, CollectStats, error) {
	var stats CollectStats
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
		stats.Matched++
	}

	var errs []error
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			stats.Failed++
			errs = append(errs, err)
			continue
		}
		if !info.IsDir() {
			stats.Scanned++
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				stats.Failed++
				errs = append(errs, walkErr)
				return nil
			}
			if path != arg && skipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				stats.Skipped++
				return nil
			}
			if d.IsDir() {
				return nil
			}
			stats.Scanned++
			if !AllowedExt(filepath.Ext(path)) {
				stats.Skipped++
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	sort.Strings(out)
	return out, stats, errors.Join(errs...)
}
