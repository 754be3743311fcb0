// Package convert validates uploaded traffic files and normalizes them to the
// single CSV wire format accepted by the batch classifier.
package convert

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	nerrors "nids-console/internal/errors"
)

// Format is an accepted upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// CSVContentType is the content type of every outbound payload.
const CSVContentType = "text/csv"

// File is an upload candidate. Name is available without I/O; Open reads it.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type localFile struct {
	path string
}

// LocalFile references a file on disk. Nothing is read until Open.
func LocalFile(path string) File {
	return localFile{path: path}
}

func (f localFile) Name() string                 { return filepath.Base(f.path) }
func (f localFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

type memFile struct {
	name string
	data []byte
}

// MemFile wraps in-memory content as a File.
func MemFile(name string, data []byte) File {
	return memFile{name: name, data: data}
}

func (f memFile) Name() string { return f.name }
func (f memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

var validate = validator.New()

// DetectFormat validates the extension of name, case-insensitively. It does
// no I/O and returns a *errors.ValidationError for anything but csv or xlsx.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if err := validate.Var(ext, "required,oneof=csv xlsx"); err != nil {
		return "", nerrors.NewValidation("file", "Please upload a CSV or Excel (XLSX) file")
	}
	return Format(ext), nil
}
