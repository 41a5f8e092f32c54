package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

// Zip extracts zip archives in-process so per-file progress can be
// reported while a seed package unpacks.
type Zip struct{}

func NewZip() *Zip {
	return &Zip{}
}

// Name returns the extractor name
func (z *Zip) Name() string {
	return "ZIP"
}

// CanExtract checks if the file is a ZIP archive
func (z *Zip) CanExtract(filePath string) (bool, error) {
	lower := strings.ToLower(filepath.Base(filePath))

	// Extension check
	if !strings.HasSuffix(lower, ".zip") {
		return false, nil
	}

	// Verify ZIP signature
	isZip, err := hasZipSignature(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to verify ZIP signature: %w", err)
	}

	return isZip, nil
}

// Extract unpacks the archive into destDir, preserving the archive's
// directory layout and overwriting existing files.
func (z *Zip) Extract(ctx context.Context, archivePath, destDir string, onProgress ProgressFunc) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	total := 0
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			total++
		}
	}

	var extracted []string
	done := 0
	for _, f := range r.File {
		select {
		case <-ctx.Done():
			return extracted, ctx.Err()
		default:
		}

		rel := filepath.Clean(f.Name)
		if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			return extracted, fmt.Errorf("archive entry escapes destination: %q", f.Name)
		}
		target := filepath.Join(destDir, rel)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return extracted, err
			}
			continue
		}

		if err := writeZipEntry(f, target); err != nil {
			return extracted, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}

		extracted = append(extracted, rel)
		done++
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	return extracted, nil
}

func writeZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// hasZipSignature checks if the file has a valid ZIP magic byte signature
func hasZipSignature(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	header := make([]byte, 4)
	n, err := file.Read(header)
	if err != nil {
		return false, err
	}

	if n < 4 {
		return false, nil
	}

	// Check against known ZIP signatures
	for _, sig := range zipSignatures {
		if bytes.Equal(header, sig) {
			return true, nil
		}
	}

	return false, nil
}
