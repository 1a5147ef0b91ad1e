package idml

import (
	"os"
	"path/filepath"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/pkg/archive"
)

// extractall writes every part in arc to dir, preserving each part's
// relative path and creating parent directories as needed.
func extractall(arc *archive.Archive, dir string) error {
	for _, path := range arc.Paths() {
		data, err := arc.Get(path)
		if err != nil {
			return err
		}
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return ioerr.Wrap("idml", "extractall", path, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return ioerr.Wrap("idml", "extractall", path, err)
		}
	}
	return nil
}
