package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
)

// ArchiveWriter packs the save and its companion into {base}-{timestamp}.zip.
// An archive with the same name is never overwritten.
type ArchiveWriter struct {
	outputDir string
	now       func() time.Time
}

func NewArchiveWriter(outputDir string) *ArchiveWriter {
	return &ArchiveWriter{
		outputDir: outputDir,
		now:       time.Now,
	}
}

func (w *ArchiveWriter) Write(ctx context.Context, saveFile, companion string) ([]string, error) {
	name := fmt.Sprintf("%s-%s.zip", baseName(saveFile), timestamp(w.now))
	dst := filepath.Join(OutputDir(w.outputDir, saveFile), name)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactExists, dst)
		}
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	if err := writeArchive(f, saveFile, companion); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return nil, err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}

	return []string{dst}, nil
}

func writeArchive(w io.Writer, saveFile, companion string) error {
	zw := zip.NewWriter(w)

	if err := addEntry(zw, saveFile); err != nil {
		_ = zw.Close()
		return err
	}

	if companion != "" {
		if err := addEntry(zw, companion); err != nil {
			_ = zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return nil
}

func addEntry(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	defer func(src *os.File) {
		_ = src.Close()
	}(src)

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", header.Name, err)
	}

	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", header.Name, err)
	}

	return nil
}
