// Package archive is the flat, ordered collection of named byte blobs that
// backs an IDML package's working copy: every part is kept as raw bytes plus
// its original ZIP header until something asks to parse or rewrite it.
package archive

import (
	"archive/zip"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/internal/ziputil"
)

// MimetypeName is the one archive member that must be written first and
// uncompressed for InDesign to accept the package.
const MimetypeName = "mimetype"

// ReadOptions configures bomb-protection limits applied while extracting an
// archive. The zero value applies the package's defaults; set a field to -1
// to disable that particular check.
type ReadOptions struct {
	MaxTotalSize        int64
	MaxFileSize         int64
	MaxFileCount        int
	MaxCompressionRatio int64
}

func (o ReadOptions) limits() *ziputil.Limits {
	return &ziputil.Limits{
		MaxTotalSize:        o.MaxTotalSize,
		MaxFileSize:         o.MaxFileSize,
		MaxFileCount:        o.MaxFileCount,
		MaxCompressionRatio: o.MaxCompressionRatio,
	}
}

type entry struct {
	data   []byte
	header *zip.FileHeader
}

// Archive is an in-memory, order-preserving map of part path to bytes.
// It is the working copy a Package mutates before re-archiving.
type Archive struct {
	files []string
	index map[string]*entry
}

// New returns an empty Archive.
func New() *Archive {
	return &Archive{index: make(map[string]*entry)}
}

// FromBytes extracts a ZIP archive held in memory.
func FromBytes(data []byte, opts ReadOptions) (*Archive, error) {
	files, err := ziputil.ExtractBytes(data, opts.limits())
	if err != nil {
		return nil, err
	}
	return fromZiputilFiles(files), nil
}

// FromPath extracts a ZIP archive from disk.
func FromPath(path string, opts ReadOptions) (*Archive, error) {
	files, err := ziputil.ExtractPath(path, opts.limits())
	if err != nil {
		return nil, err
	}
	return fromZiputilFiles(files), nil
}

func fromZiputilFiles(files []ziputil.File) *Archive {
	a := New()
	for _, f := range files {
		a.files = append(a.files, f.Name)
		a.index[f.Name] = &entry{data: f.Data, header: f.Header}
	}
	return a
}

// Get returns the bytes stored at path.
func (a *Archive) Get(path string) ([]byte, error) {
	e, ok := a.index[path]
	if !ok {
		return nil, ioerr.New("archive", "get", path, ioerr.KindUnknownPath, nil)
	}
	return e.data, nil
}

// Has reports whether path exists in the archive.
func (a *Archive) Has(path string) bool {
	_, ok := a.index[path]
	return ok
}

// Set stores data at path, preserving the original ZIP header (and thus
// compression method) if the path already existed, or appending path to the
// archive's order if it's new.
func (a *Archive) Set(path string, data []byte) {
	if e, ok := a.index[path]; ok {
		e.data = data
		return
	}
	a.files = append(a.files, path)
	a.index[path] = &entry{data: data}
}

// Delete removes path from the archive.
func (a *Archive) Delete(path string) {
	if _, ok := a.index[path]; !ok {
		return
	}
	delete(a.index, path)
	for i, name := range a.files {
		if name == path {
			a.files = append(a.files[:i], a.files[i+1:]...)
			break
		}
	}
}

// Paths returns every part path, in archive order.
func (a *Archive) Paths() []string {
	out := make([]string, len(a.files))
	copy(out, a.files)
	return out
}

// Clone returns a deep-enough copy of the archive for splice operations that
// must not mutate their source package.
func (a *Archive) Clone() *Archive {
	c := New()
	c.files = append(c.files, a.files...)
	for k, v := range a.index {
		data := make([]byte, len(v.data))
		copy(data, v.data)
		c.index[k] = &entry{data: data, header: v.header}
	}
	return c
}

// ToBytes serializes the archive back into ZIP bytes, writing mimetype first
// and uncompressed.
func (a *Archive) ToBytes() ([]byte, error) {
	return ziputil.WriteZipToBuffer(a.ziputilFiles(), a.files, MimetypeName)
}

// WriteToPath serializes the archive to a ZIP file on disk.
func (a *Archive) WriteToPath(path string) error {
	return ziputil.WriteZipToPath(path, a.ziputilFiles(), a.files, MimetypeName)
}

func (a *Archive) ziputilFiles() []ziputil.File {
	out := make([]ziputil.File, 0, len(a.files))
	for _, name := range a.files {
		e := a.index[name]
		out = append(out, ziputil.File{Name: name, Data: e.data, Header: e.header})
	}
	return out
}
