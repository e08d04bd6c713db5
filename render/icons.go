package render

import (
	"image"

	"github.com/ktrzcinx/rtls-app/assets"
)

// IconTable maps device ids to icons by bucket (id mod bucket count). It is
// built once at startup and read-only afterwards.
type IconTable struct {
	icons []image.Image
}

// NewIconTable wraps already decoded icons. Nil entries are allowed and
// render as nothing.
func NewIconTable(icons []image.Image) *IconTable {
	return &IconTable{icons: append([]image.Image(nil), icons...)}
}

// LoadIconTable decodes n embedded device icons. Buckets that fail to load
// stay empty; their errors are returned for logging.
func LoadIconTable(n int) (*IconTable, []error) {
	icons, errs := assets.LoadDeviceIcons(n)
	return &IconTable{icons: icons}, errs
}

// Len returns the bucket count.
func (t *IconTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.icons)
}

// For returns the icon for a device id, or nil when its bucket is empty.
func (t *IconTable) For(id int) image.Image {
	n := t.Len()
	if n == 0 {
		return nil
	}
	return t.icons[((id%n)+n)%n]
}

// Images returns the loaded icons, skipping empty buckets.
func (t *IconTable) Images() []image.Image {
	if t == nil {
		return nil
	}
	out := make([]image.Image, 0, len(t.icons))
	for _, img := range t.icons {
		if img != nil {
			out = append(out, img)
		}
	}
	return out
}
