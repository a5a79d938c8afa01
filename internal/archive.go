package internal

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
)

// ArchiveLimits controls zip bomb protection thresholds.
type ArchiveLimits struct {
	// MaxDecompressionRatio is the maximum allowed ratio of uncompressed to
	// compressed size for a single ZIP entry. TAR entries are not ratio-checked.
	MaxDecompressionRatio int64

	// MaxTotalSize is the maximum total bytes extracted from one archive.
	MaxTotalSize int64

	// MaxEntryCount is the maximum number of containers processed from one
	// archive.
	MaxEntryCount int

	// MaxEntrySize is the maximum size of a single decompressed entry. A1
	// containers are a few kilobytes; anything near this limit is not one.
	MaxEntrySize int64
}

// DefaultArchiveLimits returns conservative defaults for archive extraction.
func DefaultArchiveLimits() ArchiveLimits {
	return ArchiveLimits{
		MaxDecompressionRatio: 100,
		MaxTotalSize:          64 * 1024 * 1024, // 64 MB
		MaxEntryCount:         10_000,
		MaxEntrySize:          1024 * 1024, // 1 MB
	}
}

// ProcessArchiveInput holds the parameters for archive processing.
type ProcessArchiveInput struct {
	ArchivePath string
	Data        []byte
	Format      string
	Limits      ArchiveLimits
	Config      *ScanConfig
}

var archiveExtensions = map[string]string{
	".zip": "zip",
	".tar": "tar",
	".tgz": "tar.gz",
}

// ArchiveFormat returns the archive format for the given path based on its
// extension, or "" if the path is not a recognized archive. ".tar.gz" is
// checked before single extensions.
func ArchiveFormat(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") {
		return "tar.gz"
	}
	return archiveExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsArchive reports whether the given path has a recognized archive extension.
func IsArchive(path string) bool {
	return ArchiveFormat(path) != ""
}

// ProcessArchive catalogs every certificate container inside an archive.
// Entries are filtered by the scan extensions, nested archives are skipped,
// and the limits are enforced. Returns the number of containers processed.
func ProcessArchive(input ProcessArchiveInput) (int, error) {
	var (
		n   int
		err error
	)
	switch input.Format {
	case "zip":
		n, err = walkZip(input)
	case "tar":
		n, err = walkTar(input, false)
	case "tar.gz":
		n, err = walkTar(input, true)
	default:
		return 0, fmt.Errorf("unsupported archive format: %q", input.Format)
	}
	if err != nil {
		return n, err
	}
	slog.Info("processed archive", "archive", input.ArchivePath, "format", input.Format, "containers", n)
	return n, nil
}

// wantEntry reports whether an archive member should be read.
func (input ProcessArchiveInput) wantEntry(name string) bool {
	if IsArchive(name) {
		slog.Debug("skipping nested archive", "archive", input.ArchivePath, "entry", name)
		return false
	}
	return HasScanExtension(name, input.Config.extensions())
}

func (input ProcessArchiveInput) processEntry(name string, data []byte) {
	virtualPath := input.ArchivePath + ":" + name
	if err := ProcessData(data, virtualPath, input.Config); err != nil {
		slog.Warn("processing archive entry", "path", virtualPath, "error", err)
	}
}

func walkZip(input ProcessArchiveInput) (int, error) {
	reader, err := zip.NewReader(bytes.NewReader(input.Data), int64(len(input.Data)))
	if err != nil {
		return 0, fmt.Errorf("opening ZIP archive %s: %w", input.ArchivePath, err)
	}

	var totalSize int64
	processed := 0

	for _, f := range reader.File {
		if processed >= input.Limits.MaxEntryCount {
			slog.Warn("archive entry count limit reached, stopping",
				"archive", input.ArchivePath, "limit", input.Limits.MaxEntryCount)
			break
		}
		if f.FileInfo().IsDir() || !input.wantEntry(f.Name) {
			continue
		}

		if f.CompressedSize64 > 0 {
			ratio := int64(f.UncompressedSize64) / int64(f.CompressedSize64)
			if ratio > input.Limits.MaxDecompressionRatio {
				slog.Warn("skipping suspicious ZIP entry: decompression ratio too high",
					"archive", input.ArchivePath, "entry", f.Name,
					"ratio", ratio, "limit", input.Limits.MaxDecompressionRatio)
				continue
			}
		}
		if int64(f.UncompressedSize64) > input.Limits.MaxEntrySize {
			slog.Debug("skipping oversized ZIP entry",
				"archive", input.ArchivePath, "entry", f.Name,
				"size", f.UncompressedSize64, "limit", input.Limits.MaxEntrySize)
			continue
		}
		if totalSize+int64(f.UncompressedSize64) > input.Limits.MaxTotalSize {
			slog.Warn("archive total size limit reached, stopping",
				"archive", input.ArchivePath, "limit", input.Limits.MaxTotalSize)
			break
		}

		data, err := readZipEntry(f, input.Limits.MaxEntrySize)
		if err != nil {
			slog.Debug("reading ZIP entry", "archive", input.ArchivePath, "entry", f.Name, "error", err)
			continue
		}

		totalSize += int64(len(data))
		input.processEntry(f.Name, data)
		processed++
	}
	return processed, nil
}

func walkTar(input ProcessArchiveInput, gzipped bool) (int, error) {
	var reader io.Reader = bytes.NewReader(input.Data)

	if gzipped {
		gr, err := gzip.NewReader(reader)
		if err != nil {
			return 0, fmt.Errorf("opening gzip layer for %s: %w", input.ArchivePath, err)
		}
		defer func() {
			if closeErr := gr.Close(); closeErr != nil {
				slog.Warn("closing gzip reader", "archive", input.ArchivePath, "error", closeErr)
			}
		}()
		reader = gr
	}

	tr := tar.NewReader(reader)
	var totalSize int64
	processed := 0

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if processed > 0 {
				slog.Warn("tar read error after processing entries",
					"archive", input.ArchivePath, "processed", processed, "error", err)
				break
			}
			return 0, fmt.Errorf("reading TAR archive %s: %w", input.ArchivePath, err)
		}

		if processed >= input.Limits.MaxEntryCount {
			slog.Warn("archive entry count limit reached, stopping",
				"archive", input.ArchivePath, "limit", input.Limits.MaxEntryCount)
			break
		}
		if header.Typeflag != tar.TypeReg || !input.wantEntry(header.Name) {
			continue
		}
		if header.Size > input.Limits.MaxEntrySize {
			slog.Debug("skipping oversized TAR entry",
				"archive", input.ArchivePath, "entry", header.Name,
				"size", header.Size, "limit", input.Limits.MaxEntrySize)
			continue
		}
		if totalSize+header.Size > input.Limits.MaxTotalSize {
			slog.Warn("archive total size limit reached, stopping",
				"archive", input.ArchivePath, "limit", input.Limits.MaxTotalSize)
			break
		}

		// The header size is not trusted; the read is capped independently.
		data, err := io.ReadAll(io.LimitReader(tr, safeLimitSize(input.Limits.MaxEntrySize)))
		if err != nil {
			slog.Debug("reading TAR entry", "archive", input.ArchivePath, "entry", header.Name, "error", err)
			continue
		}
		if int64(len(data)) > input.Limits.MaxEntrySize {
			slog.Warn("TAR entry exceeded max size despite header claim",
				"archive", input.ArchivePath, "entry", header.Name)
			continue
		}

		totalSize += int64(len(data))
		input.processEntry(header.Name, data)
		processed++
	}
	return processed, nil
}

// readZipEntry reads a ZIP member with the size limit enforced on the
// decompressed stream, regardless of what the header claims.
func readZipEntry(f *zip.File, maxSize int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening ZIP entry %s: %w", f.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			slog.Warn("closing ZIP entry", "entry", f.Name, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(rc, safeLimitSize(maxSize)))
	if err != nil {
		return nil, fmt.Errorf("reading ZIP entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("ZIP entry %s exceeds max size (%d bytes)", f.Name, maxSize)
	}
	return data, nil
}

// safeLimitSize returns maxSize+1 for overflow detection in io.LimitReader,
// clamped to math.MaxInt64.
func safeLimitSize(maxSize int64) int64 {
	if maxSize == math.MaxInt64 {
		return math.MaxInt64
	}
	return maxSize + 1
}
