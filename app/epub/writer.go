package epub

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteTo writes the archive as a zip container. The mimetype entry comes
// first, stored uncompressed with no extra field, so its content starts at
// byte 38 of the file.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	for _, entry := range a.Entries {
		var (
			f   io.Writer
			err error
		)
		if entry.Name == mimetypePath {
			size := uint64(len(entry.Data))
			f, err = zw.CreateRaw(&zip.FileHeader{
				Name:               entry.Name,
				Method:             zip.Store,
				CRC32:              crc32.ChecksumIEEE(entry.Data),
				CompressedSize64:   size,
				UncompressedSize64: size,
			})
		} else {
			f, err = zw.CreateHeader(&zip.FileHeader{
				Name:     entry.Name,
				Method:   zip.Deflate,
				Modified: a.CreatedAt,
			})
		}
		if err != nil {
			return cw.n, fmt.Errorf("failed to create entry %s: %w", entry.Name, err)
		}
		if _, err := f.Write(entry.Data); err != nil {
			return cw.n, fmt.Errorf("failed to write entry %s: %w", entry.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return cw.n, nil
}

// WriteFile writes the archive to path atomically: it is written to a
// temporary file in the same directory and renamed into place, so path either
// holds a complete archive or is left untouched.
func WriteFile(archive *Archive, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.epub")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := archive.WriteTo(tmp); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set archive permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}

	return nil
}

// ArchiveName renders the output file name for t from a Go time layout.
func ArchiveName(layout string, t time.Time) string {
	return filepath.Base(t.Format(layout))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
