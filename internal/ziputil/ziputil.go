// Package ziputil extracts and writes ZIP archives with the bomb-protection
// limits and mimetype-first ordering an IDML package requires.
package ziputil

import (
	"archive/zip"
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dimelords/idmlsplice/internal/ioerr"
)

// Default limits for ZIP bomb protection.
const (
	DefaultMaxTotalSize        int64 = 500 * 1024 * 1024
	DefaultMaxFileSize         int64 = 100 * 1024 * 1024
	DefaultMaxFileCount        int   = 10000
	DefaultMaxCompressionRatio int64 = 100
)

// Limits configures bounded extraction. A zero field takes the default; -1
// disables that particular check.
type Limits struct {
	MaxTotalSize        int64
	MaxFileSize         int64
	MaxFileCount        int
	MaxCompressionRatio int64
}

func (l *Limits) applyDefaults() {
	if l.MaxTotalSize == 0 {
		l.MaxTotalSize = DefaultMaxTotalSize
	}
	if l.MaxFileSize == 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxFileCount == 0 {
		l.MaxFileCount = DefaultMaxFileCount
	}
	if l.MaxCompressionRatio == 0 {
		l.MaxCompressionRatio = DefaultMaxCompressionRatio
	}
}

// File is one extracted archive member: its raw bytes plus the ZIP header
// needed to reproduce its original compression method on write.
type File struct {
	Name   string
	Data   []byte
	Header *zip.FileHeader
}

func isValidZipPath(name string) bool {
	if name == "" || filepath.IsAbs(name) {
		return false
	}
	cleaned := filepath.Clean(name)
	if strings.HasPrefix(cleaned, "..") {
		return false
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
	}
	return true
}

// Extract reads every member of a zip.Reader's file list into memory,
// enforcing the supplied Limits. source is used only for error messages.
func Extract(files []*zip.File, limits *Limits, source string) ([]File, error) {
	if limits == nil {
		limits = &Limits{}
	}
	limits.applyDefaults()

	if limits.MaxFileCount > 0 && len(files) > limits.MaxFileCount {
		return nil, ioerr.Errorf("ziputil", "extract", source, ioerr.KindMalformedPackage,
			"archive contains %d files, exceeds limit of %d", len(files), limits.MaxFileCount)
	}

	var out []File
	var totalSize int64
	for _, f := range files {
		if !isValidZipPath(f.Name) {
			return nil, ioerr.Errorf("ziputil", "extract", f.Name, ioerr.KindMalformedPackage,
				"invalid path: potential directory traversal")
		}
		if err := checkSizes(f, limits, &totalSize, source); err != nil {
			return nil, err
		}
		data, err := extractOne(f, limits, source)
		if err != nil {
			return nil, err
		}
		header := f.FileHeader
		out = append(out, File{Name: f.Name, Data: data, Header: &header})
	}
	return out, nil
}

func checkSizes(f *zip.File, limits *Limits, totalSize *int64, source string) error {
	if f.UncompressedSize64 > math.MaxInt64 {
		return ioerr.Errorf("ziputil", "extract", f.Name, ioerr.KindMalformedPackage,
			"file size %d bytes exceeds maximum supported size", f.UncompressedSize64)
	}
	uncompressedSize := int64(f.UncompressedSize64)

	if limits.MaxFileSize > 0 && uncompressedSize > limits.MaxFileSize {
		return ioerr.Errorf("ziputil", "extract", f.Name, ioerr.KindMalformedPackage,
			"file size %d bytes exceeds limit of %d bytes", uncompressedSize, limits.MaxFileSize)
	}

	if limits.MaxCompressionRatio > 0 && f.CompressedSize64 > 0 && f.Method != zip.Store {
		compressedSize := int64(f.CompressedSize64)
		ratio := uncompressedSize / compressedSize
		if ratio > limits.MaxCompressionRatio {
			return ioerr.Errorf("ziputil", "extract", f.Name, ioerr.KindMalformedPackage,
				"compression ratio %d exceeds limit of %d (potential ZIP bomb)", ratio, limits.MaxCompressionRatio)
		}
	}

	*totalSize += uncompressedSize
	if limits.MaxTotalSize > 0 && *totalSize > limits.MaxTotalSize {
		return ioerr.Errorf("ziputil", "extract", source, ioerr.KindMalformedPackage,
			"total uncompressed size exceeds limit of %d bytes", limits.MaxTotalSize)
	}
	return nil
}

func extractOne(f *zip.File, limits *Limits, source string) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, ioerr.Wrap("ziputil", "extract", source+"/"+f.Name, err)
	}
	defer rc.Close()

	maxRead := int64(f.UncompressedSize64) + 1024
	if limits.MaxFileSize > 0 && maxRead > limits.MaxFileSize {
		maxRead = limits.MaxFileSize + 1
	}

	data, err := io.ReadAll(io.LimitReader(rc, maxRead))
	if err != nil {
		return nil, ioerr.Wrap("ziputil", "extract", source+"/"+f.Name, err)
	}
	if int64(len(data)) > int64(f.UncompressedSize64)+1024 {
		return nil, ioerr.Errorf("ziputil", "extract", f.Name, ioerr.KindMalformedPackage,
			"actual size %d exceeds declared size %d (potential ZIP bomb)", len(data), f.UncompressedSize64)
	}
	return data, nil
}

// ExtractBytes opens an in-memory ZIP and extracts it with Extract.
func ExtractBytes(data []byte, limits *Limits) ([]File, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ioerr.Wrap("ziputil", "extract bytes", "<memory>", err)
	}
	return Extract(r.File, limits, "<memory>")
}

// ExtractPath opens a ZIP file on disk and extracts it with Extract.
func ExtractPath(path string, limits *Limits) ([]File, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, ioerr.Wrap("ziputil", "extract", path, err)
	}
	defer r.Close()
	return Extract(r.File, limits, path)
}

// WriteZip writes files to w in order, forcing the IDML mimetype-first,
// store-uncompressed rule: a member literally named "mimetype" is always
// written first and without compression, regardless of where it sits in
// order. Every other file keeps its original header (and thus its original
// compression method) when available, or defaults to Deflate.
func WriteZip(w *zip.Writer, files []File, order []string, mimetypeName string) error {
	byName := make(map[string]File, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}

	if mt, ok := byName[mimetypeName]; ok {
		header := zip.FileHeader{Name: mt.Name, Method: zip.Store}
		if mt.Header != nil {
			header = *mt.Header
			header.Method = zip.Store
		}
		fw, err := w.CreateHeader(&header)
		if err != nil {
			return ioerr.Wrap("ziputil", "write", mimetypeName, err)
		}
		if _, err := fw.Write(mt.Data); err != nil {
			return ioerr.Wrap("ziputil", "write", mimetypeName, err)
		}
	}

	for _, name := range order {
		if name == mimetypeName {
			continue
		}
		f, ok := byName[name]
		if !ok {
			continue
		}
		header := f.Header
		if header == nil {
			header = &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: time.Now()}
		}
		fw, err := w.CreateHeader(header)
		if err != nil {
			return ioerr.Wrap("ziputil", "write", name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return ioerr.Wrap("ziputil", "write", name, err)
		}
	}
	return nil
}

// WriteZipToPath creates path and writes files to it via WriteZip.
func WriteZipToPath(path string, files []File, order []string, mimetypeName string) error {
	f, err := os.Create(path)
	if err != nil {
		return ioerr.Wrap("ziputil", "write", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	if err := WriteZip(w, files, order, mimetypeName); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return ioerr.Wrap("ziputil", "write", path, err)
	}
	return nil
}

// WriteZipToBuffer writes files into an in-memory buffer via WriteZip.
func WriteZipToBuffer(files []File, order []string, mimetypeName string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if err := WriteZip(w, files, order, mimetypeName); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, ioerr.Wrap("ziputil", "write", "<memory>", err)
	}
	return buf.Bytes(), nil
}
