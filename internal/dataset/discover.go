package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/brats/internal/serialization"
)

// Discover walks root and returns the sorted paths of files whose extension is
// in exts (case-insensitive). With no exts, every format ReadSample accepts is
// matched.
func Discover(root string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = []string{serialization.FormatSafeTensors.Ext(), serialization.FormatNPZ.Ext()}
	}
	want := make(map[string]bool, len(exts))
	for _, ext := range exts {
		want["."+strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if want[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}
