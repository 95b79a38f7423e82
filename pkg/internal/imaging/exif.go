package imaging

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// ErrNoMetadata 图片不含 EXIF.
var ErrNoMetadata = errors.New("no exif metadata")

// 元数据分组名称.
const (
	SectionIFD0      = "IFD0"
	SectionExif      = "Exif SubIFD"
	SectionGPS       = "GPS"
	SectionInterop   = "Interoperability"
	SectionComposite = "Composite"
)

var ifd0Fields = map[exif.FieldName]bool{
	exif.ImageWidth:       true,
	exif.ImageLength:      true,
	exif.Make:             true,
	exif.Model:            true,
	exif.Orientation:      true,
	exif.XResolution:      true,
	exif.YResolution:      true,
	exif.ResolutionUnit:   true,
	exif.Software:         true,
	exif.DateTime:         true,
	exif.Artist:           true,
	exif.Copyright:        true,
	exif.ImageDescription: true,
}

// Metadata 按分组组织的标签.
type Metadata map[string]map[string]string

// Extract 读取 EXIF 并按分组返回标签文本.
func Extract(r io.Reader) (Metadata, error) {
	x, err := exif.Decode(r)
	if err != nil {
		if exif.IsCriticalError(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoMetadata, err)
		}
	}

	if x == nil {
		return nil, ErrNoMetadata
	}

	w := &sectionWalker{out: Metadata{}}
	if err := x.Walk(w); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}

	composite := map[string]string{}
	if t, err := x.DateTime(); err == nil {
		composite["DateTimeOriginal"] = t.Format(time.RFC3339)
	}

	if lat, long, err := x.LatLong(); err == nil {
		composite["Latitude"] = fmt.Sprintf("%.6f", lat)
		composite["Longitude"] = fmt.Sprintf("%.6f", long)
	}

	if len(composite) > 0 {
		w.out[SectionComposite] = composite
	}

	if len(w.out) == 0 {
		return nil, ErrNoMetadata
	}

	return w.out, nil
}

type sectionWalker struct {
	out Metadata
}

func (w *sectionWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag == nil || name == exif.MakerNote || name == exif.UserComment {
		return nil
	}

	section := sectionOf(name)
	if w.out[section] == nil {
		w.out[section] = map[string]string{}
	}

	w.out[section][string(name)] = tagText(tag)

	return nil
}

func sectionOf(name exif.FieldName) string {
	n := string(name)

	switch {
	case strings.HasPrefix(n, "GPS"):
		return SectionGPS
	case strings.HasPrefix(n, "Interoperability"):
		return SectionInterop
	case ifd0Fields[name]:
		return SectionIFD0
	default:
		return SectionExif
	}
}

func tagText(tag *tiff.Tag) string {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			return strings.TrimRight(s, "\x00 ")
		}
	}

	return tag.String()
}
