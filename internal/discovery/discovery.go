// Package discovery finds SVD files on disk and watches directories
// for changes. The vendor of a file is taken from the directory layout:
// the first path element under the scan root (data/STMicro/f407.svd
// has vendor STMicro).
package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// File is one discovered SVD file.
type File struct {
	Path   string
	Vendor string
}

// fallback vendor for files sitting directly in the scan root.
const unknownVendor = "unknown"

// Discover walks root recursively and returns all *.svd files sorted
// by path. Hidden directories are skipped.
func Discover(root string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSVD(name) {
			return nil
		}
		files = append(files, File{Path: path, Vendor: VendorOf(root, path)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IsSVD reports whether name looks like an SVD file.
func IsSVD(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".svd") && !strings.HasPrefix(name, ".")
}

// VendorOf derives the vendor for path from its position under root.
func VendorOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if dir, _, ok := strings.Cut(rel, "/"); ok && dir != "." {
		return dir
	}
	return unknownVendor
}

// GroupByVendor buckets files by vendor. Buckets preserve the sorted
// order of the input.
func GroupByVendor(files []File) map[string][]File {
	groups := make(map[string][]File)
	for _, f := range files {
		groups[f.Vendor] = append(groups[f.Vendor], f)
	}
	return groups
}
