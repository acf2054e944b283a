// Package bundle lays out the exported carousel files: the full view, the
// numbered slices and a README, either in a directory or in a zip archive.
package bundle

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivlev/panoslice/internal/geometry"
)

const (
	FullViewName = "slice_00_full_view.jpg"
	ReadmeName   = "README.txt"
	ZipName      = "carousel_slices.zip"
)

// Writer stores named files. Names use forward slashes.
type Writer interface {
	WriteFile(name string, data []byte) error
	Close() error
}

func FolderName(highRes bool) string {
	if highRes {
		return "high_res_slices"
	}
	return "standard_slices"
}

// SliceName is the file name for the 1-based slice index.
func SliceName(index int) string {
	return fmt.Sprintf("slice_%02d.jpg", index)
}

func VideoName(format string) string {
	return "pan_video." + format
}

// Bundle is one exported carousel. Images are already encoded.
type Bundle struct {
	HighRes  bool
	Ratio    geometry.AspectRatio
	Geometry geometry.Result
	FullView []byte
	Slices   [][]byte
	Created  time.Time
}

func (b Bundle) Readme() string {
	last := SliceName(len(b.Slices))
	created := b.Created
	if created.IsZero() {
		created = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Panorama carousel, created %s\n\n", created.Format("2006-01-02"))
	sb.WriteString("This package contains:\n")
	if b.FullView != nil {
		fmt.Fprintf(&sb, "- %s: the whole panorama fitted into one %s tile\n", FullViewName, b.Ratio)
	}
	fmt.Fprintf(&sb, "- %s to %s: the panorama cut into %d tiles of %dx%d\n\n",
		SliceName(1), last, len(b.Slices), b.Geometry.SliceWidth, b.Geometry.SliceHeight)
	sb.WriteString("Posting order:\n")
	fmt.Fprintf(&sb, "1. Add %s through %s to one carousel post, in order\n", SliceName(1), last)
	if b.FullView != nil {
		fmt.Fprintf(&sb, "2. Add %s as the first or the last image\n", FullViewName)
	}
	return sb.String()
}

// Write stores every file of b through w. Images go under FolderName and
// the README at the top level. w is not closed.
func Write(w Writer, b Bundle) error {
	if len(b.Slices) == 0 {
		return fmt.Errorf("bundle has no slices")
	}
	folder := FolderName(b.HighRes)

	if b.FullView != nil {
		if err := w.WriteFile(folder+"/"+FullViewName, b.FullView); err != nil {
			return fmt.Errorf("write full view: %w", err)
		}
	}
	for i, data := range b.Slices {
		name := folder + "/" + SliceName(i+1)
		if err := w.WriteFile(name, data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := w.WriteFile(ReadmeName, []byte(b.Readme())); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	return nil
}
