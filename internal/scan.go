package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sensiblebit/icpcert"
)

// DefaultScanExtensions are the container extensions opened during a
// directory scan.
var DefaultScanExtensions = []string{".pfx", ".p12", ".jks"}

// skippableDirs contains directory names that cannot contain certificates
// and are skipped during filesystem walks.
var skippableDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".tox":         true,
	".venv":        true,
	"vendor":       true,
}

// IsSkippableDir reports whether the given directory name should be skipped
// during scanning.
func IsSkippableDir(name string) bool {
	return skippableDirs[name]
}

// HasScanExtension reports whether path ends in one of exts, case-insensitively.
// For virtual paths like "certs.zip:acme.pfx" only the part after the last
// ":" is considered.
func HasScanExtension(path string, exts []string) bool {
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		path = path[idx+1:]
	}
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

// NormalizeExtensions lowercases exts and adds a missing leading dot, so
// "PFX" and ".pfx" select the same files.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func (cfg *ScanConfig) extensions() []string {
	if len(cfg.Extensions) == 0 {
		return DefaultScanExtensions
	}
	return cfg.Extensions
}

func (cfg *ScanConfig) now() time.Time {
	if cfg.Now.IsZero() {
		return time.Now()
	}
	return cfg.Now
}

// ScanPath catalogs every container under cfg.InputPath into cfg.DB and
// returns how many containers were processed. A file given directly is
// processed whatever its extension. Per-file failures are recorded in the
// catalog and do not stop the walk.
func ScanPath(ctx context.Context, cfg *ScanConfig) (int, error) {
	info, err := os.Stat(cfg.InputPath)
	if err != nil {
		return 0, fmt.Errorf("input path %s: %w", cfg.InputPath, err)
	}
	if !info.IsDir() {
		return processPath(cfg.InputPath, cfg)
	}

	total := 0
	err = filepath.WalkDir(cfg.InputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != cfg.InputPath && IsSkippableDir(d.Name()) {
				slog.Debug("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if !IsArchive(path) && !HasScanExtension(path, cfg.extensions()) {
			return nil
		}
		n, err := processPath(path, cfg)
		if err != nil {
			slog.Warn("error processing file", "path", path, "error", err)
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walking input path: %w", err)
	}
	return total, nil
}

func processPath(path string, cfg *ScanConfig) (int, error) {
	if format := ArchiveFormat(path); format != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("could not read %s: %w", path, err)
		}
		return ProcessArchive(ProcessArchiveInput{
			ArchivePath: path,
			Data:        data,
			Format:      format,
			Limits:      DefaultArchiveLimits(),
			Config:      cfg,
		})
	}
	return 1, ProcessFile(path, cfg)
}

// ProcessFile reads one container from disk and catalogs it.
func ProcessFile(path string, cfg *ScanConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	return ProcessData(data, path, cfg)
}

// ProcessData catalogs the certificate in data. The virtualPath identifies
// the source (a real path or "archive.zip:entry.pfx"). Whatever an earlier
// scan recorded for that path is replaced. A parse failure is recorded as a
// scan error and returned.
func ProcessData(data []byte, virtualPath string, cfg *ScanConfig) error {
	now := cfg.now()

	r, err := InspectData(data, cfg.Passwords, now)
	if clearErr := cfg.DB.ClearPath(virtualPath); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	if err != nil {
		if recErr := cfg.DB.InsertScanError(ScanErrorRecord{
			Path:      virtualPath,
			Kind:      errorKindLabel(err),
			Message:   err.Error(),
			ScannedAt: now.UTC(),
		}); recErr != nil {
			return errors.Join(err, recErr)
		}
		return err
	}
	r.Path = virtualPath

	rec, err := NewCertificateRecord(r)
	if err != nil {
		return err
	}
	if err := cfg.DB.InsertCertificate(rec); err != nil {
		return err
	}

	slog.Info("found certificate",
		"path", virtualPath,
		"cn", r.Certificate.Subject.CN,
		"cnpj", r.Certificate.CNPJValue(),
		"status", r.Status)
	return nil
}

func errorKindLabel(err error) string {
	if kind, ok := icpcert.KindOf(err); ok {
		return kind.String()
	}
	return "unreadable"
}
