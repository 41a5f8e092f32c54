package extraction

import "context"

// ProgressFunc reports extraction progress as files are written:
// (3, 120), (4, 120), ...
type ProgressFunc func(done, total int)

// Extractor defines the behavior for extracting seed archives.
type Extractor interface {
	// Extract unpacks the archive at the given path into destDir, calling
	// onProgress after each written file. Returns the extracted relative
	// paths, or an error if extraction fails.
	Extract(ctx context.Context, archivePath, destDir string, onProgress ProgressFunc) ([]string, error)

	// CanExtract checks if this extractor can handle the given file.
	CanExtract(filePath string) (bool, error)

	// Returns the human-readable name of this extractor (e.g. "ZIP")
	Name() string
}
