// Package archive safely extracts the YAML payload embedded in ZIP
// artifacts downloaded from the platform, with protection against
// decompression bombs and path traversal.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Safety limits enforced before or during extraction.
const (
	// MaxArchiveSize is the maximum accepted compressed input (10 MiB).
	MaxArchiveSize = 10 * 1024 * 1024

	// MaxUncompressedSize is the cumulative uncompressed budget across all
	// entries (50 MiB), checked entry-by-entry so extraction aborts early.
	MaxUncompressedSize = 50 * 1024 * 1024

	// MaxCompressionRatio is the per-entry uncompressed:compressed ceiling.
	MaxCompressionRatio = 50

	// MaxEntryCount is the maximum number of entries per archive.
	MaxEntryCount = 10
)

// Violation classes. Every safety failure wraps one of these so callers can
// distinguish them from transport or decode errors.
var (
	ErrArchiveTooLarge      = errors.New("archive exceeds maximum compressed size")
	ErrTooManyEntries       = errors.New("archive contains too many entries")
	ErrUncompressedTooLarge = errors.New("archive exceeds maximum uncompressed size")
	ErrSuspiciousRatio      = errors.New("archive entry exceeds maximum compression ratio")
	ErrUnsafePath           = errors.New("archive entry has an unsafe path")
	ErrNoYAMLEntry          = errors.New("no YAML entry found in archive")
)

// ExtractYAML returns the content of the first entry whose name ends in
// .yaml or .yml. "First" is the archive directory order; later entries are
// still scanned for their size and ratio checks but never returned. Any
// safety violation is a hard failure, never a silent truncation.
func ExtractYAML(data []byte) (string, error) {
	if len(data) > MaxArchiveSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrArchiveTooLarge, len(data), MaxArchiveSize)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read ZIP archive: %w", err)
	}

	if len(reader.File) > MaxEntryCount {
		return "", fmt.Errorf("%w: %d entries (max %d)", ErrTooManyEntries, len(reader.File), MaxEntryCount)
	}

	var totalUncompressed uint64
	var yamlContent string
	found := false

	for _, entry := range reader.File {
		// Path checks happen before any bytes are read from the entry.
		name := entry.Name
		if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}

		totalUncompressed += entry.UncompressedSize64
		if totalUncompressed > MaxUncompressedSize {
			return "", fmt.Errorf("%w: %d bytes (max %d)", ErrUncompressedTooLarge, totalUncompressed, MaxUncompressedSize)
		}

		if entry.CompressedSize64 > 0 {
			ratio := entry.UncompressedSize64 / entry.CompressedSize64
			if ratio > MaxCompressionRatio {
				return "", fmt.Errorf("%w: %d:1 (max %d:1)", ErrSuspiciousRatio, ratio, MaxCompressionRatio)
			}
		}

		if found || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		content, err := readEntry(entry)
		if err != nil {
			return "", fmt.Errorf("failed to read entry %q: %w", name, err)
		}
		yamlContent = content
		found = true
	}

	if !found {
		return "", ErrNoYAMLEntry
	}
	return yamlContent, nil
}

// readEntry reads one entry, trusting the declared size only up to the
// global uncompressed budget in case the header lies.
func readEntry(entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	limited := io.LimitReader(rc, MaxUncompressedSize+1)
	content, err := io.ReadAll(limited)
	if err != nil {
		return "", err
	}
	if len(content) > MaxUncompressedSize {
		return "", fmt.Errorf("%w: entry body larger than declared", ErrUncompressedTooLarge)
	}
	return string(content), nil
}
