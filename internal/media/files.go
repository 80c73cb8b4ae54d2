// Package media discovers batch inputs on disk and names batch outputs.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// ErrNoInputs is returned when a folder holds no file of the requested kinds.
var ErrNoInputs = errors.New("no input files found")

// Kind groups file extensions by the media type the external tool expects.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var extensions = map[Kind]map[string]bool{
	KindImage: {
		".jpg":  true,
		".jpeg": true,
		".png":  true,
	},
	KindVideo: {
		".mp4": true,
		".mov": true,
		".m4v": true,
		".avi": true,
	},
}

// probedImages are image formats listed only when inputs are verified by
// decoding them.
var probedImages = map[string]bool{
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ParseKinds converts a flag value ("image", "video", "all") into kinds.
func ParseKinds(s string) ([]Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return []Kind{KindImage}, nil
	case "video", "videos":
		return []Kind{KindVideo}, nil
	case "all", "any":
		return []Kind{KindImage, KindVideo}, nil
	default:
		return nil, fmt.Errorf("unknown media kind %q (want image, video or all)", s)
	}
}

// KindOf returns the kind of a file name, or "" if the extension is not supported.
// Formats accepted only after probing count as images.
func KindOf(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	if probedImages[ext] {
		return KindImage
	}
	for kind, exts := range extensions {
		if exts[ext] {
			return kind
		}
	}
	return ""
}

// IsKind reports whether the file name has an extension of one of the kinds.
func IsKind(name string, kinds ...Kind) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, k := range kinds {
		if extensions[k][ext] {
			return true
		}
	}
	return false
}

// ListFiles returns the sorted base names of the regular files in dir whose
// extension belongs to one of kinds. Subdirectories are not descended into.
func ListFiles(dir string, kinds ...Kind) ([]string, error) {
	return listFiles(dir, func(name string) bool {
		return IsKind(name, kinds...)
	})
}

// ListProbed is ListFiles that also lists webp, bmp and tiff images when
// kinds include KindImage. The caller is expected to decode them with
// FilterReadable before use.
func ListProbed(dir string, kinds ...Kind) ([]string, error) {
	images := slices.Contains(kinds, KindImage)
	return listFiles(dir, func(name string) bool {
		return IsKind(name, kinds...) || (images && probedImages[strings.ToLower(filepath.Ext(name))])
	})
}

func listFiles(dir string, match func(name string) bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read folder %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && match(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stem returns the file name without directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CheckFiles reports the first listed path that is missing or not a regular file.
func CheckFiles(files []string) error {
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", file, err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", file)
		}
	}
	return nil
}

// Stage moves explicitly listed files into dir and returns their base names.
// Files already inside dir are left in place.
func Stage(files []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging folder %s: %w", dir, err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file)
		dest := filepath.Join(dir, name)
		if filepath.Clean(file) != filepath.Clean(dest) {
			if err := moveFile(file, dest); err != nil {
				return names, fmt.Errorf("staging %s: %w", file, err)
			}
		}
		names = append(names, name)
	}
	return names, nil
}

// moveFile renames src to dst, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
