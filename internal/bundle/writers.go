package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// DirWriter writes files below Root, creating directories as needed.
type DirWriter struct {
	Root string
}

func (d DirWriter) WriteFile(name string, data []byte) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// path keeps name inside Root.
func (d DirWriter) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file name escapes bundle root: %q", name)
	}
	return filepath.Join(d.Root, clean), nil
}

func (d DirWriter) Close() error { return nil }

// ZipWriter stores files in a zip archive. JPEGs are stored as is since
// deflating them gains nothing.
type ZipWriter struct {
	zw       *zip.Writer
	modified time.Time
}

func NewZipWriter(w io.Writer) *ZipWriter {
	return &ZipWriter{zw: zip.NewWriter(w), modified: time.Now()}
}

func (z *ZipWriter) WriteFile(name string, data []byte) error {
	method := zip.Deflate
	if strings.EqualFold(filepath.Ext(name), ".jpg") {
		method = zip.Store
	}
	fw, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: z.modified,
	})
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

func (z *ZipWriter) Close() error {
	return z.zw.Close()
}
