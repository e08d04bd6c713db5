package assets

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
)

//go:embed devices/*.png
var assetsFS embed.FS

// DeviceIconCount is the number of embedded device icons.
const DeviceIconCount = 4

// LoadImage loads an asset by assets-relative path. A file under ./assets on
// disk wins over the embedded copy.
func LoadImage(path string) (image.Image, error) {
	b, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("assets: decode %s: %w", path, err)
	}
	return img, nil
}

// LoadFile loads an asset by assets-relative path.
func LoadFile(path string) ([]byte, error) {
	clean := cleanAssetPath(path)
	if clean == "" {
		return nil, fmt.Errorf("assets: empty path")
	}
	if b, err := os.ReadFile(filepath.Join("assets", filepath.FromSlash(clean))); err == nil {
		return b, nil
	}
	return assetsFS.ReadFile(clean)
}

// DeviceIconPath returns the asset path of icon bucket i.
func DeviceIconPath(i int) string {
	return fmt.Sprintf("devices/device_%d.png", i)
}

// LoadDeviceIcons decodes the first n device icons. A bucket that fails to
// load is left nil and its error is reported; the rest still load.
func LoadDeviceIcons(n int) ([]image.Image, []error) {
	if n <= 0 {
		return nil, nil
	}
	icons := make([]image.Image, n)
	var errs []error
	for i := range icons {
		img, err := LoadImage(DeviceIconPath(i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		icons[i] = img
	}
	return icons, errs
}

func cleanAssetPath(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		s := filepath.ToSlash(path)
		if idx := strings.LastIndex(s, "/assets/"); idx >= 0 {
			return s[idx+len("/assets/"):]
		}
		return filepath.Base(path)
	}
	s := filepath.ToSlash(path)
	if after, ok := strings.CutPrefix(s, "assets/"); ok {
		return after
	}
	return s
}
