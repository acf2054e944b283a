package source

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

var (
	ErrInvalidInput = errors.New("invalid source image")
	ErrNotPanorama  = errors.New("source is not a horizontal panorama")
)

// Image is a decoded, immutable panorama. Nothing in the engine draws into it.
type Image struct {
	img    image.Image
	width  int
	height int
}

func New(img image.Image) (*Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidInput, b.Dx(), b.Dy())
	}
	return &Image{img: img, width: b.Dx(), height: b.Dy()}, nil
}

func (i *Image) Width() int              { return i.width }
func (i *Image) Height() int             { return i.height }
func (i *Image) Bounds() image.Rectangle { return i.img.Bounds() }
func (i *Image) Image() image.Image      { return i.img }

// ValidatePanorama rejects sources that are not wider than they are tall.
func ValidatePanorama(img *Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	if img.width <= img.height {
		return fmt.Errorf("%w: %dx%d", ErrNotPanorama, img.width, img.height)
	}
	return nil
}

// Source yields panoramas by index: files of a directory or pages of a PDF.
type Source interface {
	PageCount() int
	GetPageDimensions(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Name(index int) string
	Close() error
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) GetPageDimensions(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	return f.doc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Name(index int) string {
	return fmt.Sprintf("page_%02d", index+1)
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
