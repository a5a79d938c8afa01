package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/sensiblebit/icpcert"
	_ "modernc.org/sqlite"
)

// DB represents the database connection.
type DB struct {
	*sqlx.DB
}

// NewDB creates and initializes a new in-memory database connection.
// All operations run in-memory for performance. Use SaveToDisk/LoadFromDisk
// to persist or restore data.
func NewDB() (*DB, error) {
	// Each :memory: connection is a separate database, so the pool is pinned
	// to one connection. PRAGMAs in the DSN apply to reconnections too.
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	dbObj := &DB{DB: db}

	if err := dbObj.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("database initialized")

	return dbObj, nil
}

// SaveToDisk writes the in-memory database to a file at the given path.
// Uses VACUUM INTO which produces a clean, compact copy in a single operation.
func (db *DB) SaveToDisk(path string) error {
	_, err := db.Exec("VACUUM INTO ?", path)
	if err != nil {
		return fmt.Errorf("saving database to %s: %w", path, err)
	}
	slog.Info("database saved to disk", "path", path)
	return nil
}

// LoadFromDisk loads a previously saved catalog into the in-memory database.
// The file is read once and then detached.
func (db *DB) LoadFromDisk(path string) error {
	_, err := db.Exec("ATTACH DATABASE ? AS diskdb", path)
	if err != nil {
		return fmt.Errorf("attaching database %s: %w", path, err)
	}
	defer func() {
		if _, err := db.Exec("DETACH DATABASE diskdb"); err != nil {
			slog.Warn("detaching database", "path", path, "error", err)
		}
	}()

	_, err = db.Exec("INSERT OR IGNORE INTO certificates SELECT * FROM diskdb.certificates")
	if err != nil {
		return fmt.Errorf("loading certificates from %s: %w", path, err)
	}

	_, err = db.Exec("INSERT OR IGNORE INTO scan_errors SELECT * FROM diskdb.scan_errors")
	if err != nil {
		return fmt.Errorf("loading scan errors from %s: %w", path, err)
	}

	slog.Info("database loaded from disk", "path", path)
	return nil
}

func (db *DB) initSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			fingerprint    text NOT NULL,
			path           text NOT NULL,
			source         text NOT NULL,
			serial_number  text NOT NULL,
			common_name    text,
			organization   text,
			issuer_cn      text,
			issuer_o       text,
			cnpj           text,
			cnpj_strategy  text,
			not_before     timestamp NOT NULL,
			not_after      timestamp NOT NULL,
			status         text NOT NULL,
			is_icp_brasil  boolean NOT NULL,
			subject        text,
			scanned_at     timestamp NOT NULL,
			PRIMARY KEY(fingerprint, path)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating certificates table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_certificates_cnpj ON certificates (cnpj);
	`)
	if err != nil {
		return fmt.Errorf("creating cnpj index on certificates table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scan_errors (
			path       TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			message    TEXT NOT NULL,
			scanned_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating scan_errors table: %w", err)
	}
	return nil
}

// NewCertificateRecord converts an inspection result into a catalog record.
func NewCertificateRecord(r *InspectResult) (CertificateRecord, error) {
	c := r.Certificate
	subject, err := json.Marshal(c.Subject)
	if err != nil {
		return CertificateRecord{}, fmt.Errorf("marshaling subject: %w", err)
	}
	return CertificateRecord{
		Fingerprint:  c.Fingerprint,
		Path:         r.Path,
		Source:       r.Source,
		SerialNumber: c.SerialNumber,
		CommonName:   nullString(c.Subject.CN),
		Organization: nullString(c.Subject.O),
		IssuerCN:     nullString(c.Issuer.CN),
		IssuerO:      nullString(c.Issuer.O),
		CNPJ:         nullString(c.CNPJValue()),
		CNPJStrategy: nullString(r.CNPJStrategy),
		NotBefore:    c.Validity.NotBefore.UTC(),
		NotAfter:     c.Validity.NotAfter.UTC(),
		Status:       string(r.Status),
		IsICPBrasil:  c.IsICPBrasil,
		SubjectJSON:  types.JSONText(subject),
		ScannedAt:    r.EvaluatedAt.UTC(),
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertCertificate inserts a certificate record. A rescan of the same
// certificate at the same path replaces the earlier row.
func (db *DB) InsertCertificate(cert CertificateRecord) error {
	_, err := db.NamedExec(`
		INSERT OR REPLACE INTO certificates (fingerprint, path, source, serial_number, common_name, organization, issuer_cn, issuer_o, cnpj, cnpj_strategy, not_before, not_after, status, is_icp_brasil, subject, scanned_at)
		VALUES (:fingerprint, :path, :source, :serial_number, :common_name, :organization, :issuer_cn, :issuer_o, :cnpj, :cnpj_strategy, :not_before, :not_after, :status, :is_icp_brasil, :subject, :scanned_at)
	`, cert)
	if err != nil {
		return fmt.Errorf("inserting certificate: %w", err)
	}
	return nil
}

// InsertScanError records a file that failed to parse. A later failure for
// the same path replaces the earlier one.
func (db *DB) InsertScanError(rec ScanErrorRecord) error {
	_, err := db.NamedExec(`
		INSERT OR REPLACE INTO scan_errors (path, kind, message, scanned_at)
		VALUES (:path, :kind, :message, :scanned_at)
	`, rec)
	if err != nil {
		return fmt.Errorf("inserting scan error: %w", err)
	}
	return nil
}

// ClearPath removes every certificate and scan error recorded for path, so a
// rescan reflects only the latest result.
func (db *DB) ClearPath(path string) error {
	if _, err := db.Exec("DELETE FROM certificates WHERE path = ?", path); err != nil {
		return fmt.Errorf("clearing certificates for %s: %w", path, err)
	}
	if _, err := db.Exec("DELETE FROM scan_errors WHERE path = ?", path); err != nil {
		return fmt.Errorf("clearing scan errors for %s: %w", path, err)
	}
	return nil
}

// GetAllCerts returns all certificate records ordered by path.
func (db *DB) GetAllCerts() ([]CertificateRecord, error) {
	var certs []CertificateRecord
	err := db.Select(&certs, "SELECT * FROM certificates ORDER BY path, fingerprint")
	if err != nil {
		return nil, fmt.Errorf("getting all certificates: %w", err)
	}
	return certs, nil
}

// GetScanErrors returns all recorded failures ordered by path.
func (db *DB) GetScanErrors() ([]ScanErrorRecord, error) {
	var recs []ScanErrorRecord
	err := db.Select(&recs, "SELECT * FROM scan_errors ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("getting scan errors: %w", err)
	}
	return recs, nil
}

// GetCertByFingerprint returns the first record with the given SHA-1
// fingerprint, or nil if there is none.
func (db *DB) GetCertByFingerprint(fingerprint string) (*CertificateRecord, error) {
	var cert CertificateRecord
	err := db.Get(&cert, "SELECT * FROM certificates WHERE fingerprint = ? ORDER BY path LIMIT 1", fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting certificate by fingerprint: %w", err)
	}
	return &cert, nil
}

// GetCertsByCNPJ returns every record for a CNPJ, newest expiry first.
func (db *DB) GetCertsByCNPJ(cnpj string) ([]CertificateRecord, error) {
	var certs []CertificateRecord
	err := db.Select(&certs, "SELECT * FROM certificates WHERE cnpj = ? ORDER BY not_after DESC, path", cnpj)
	if err != nil {
		return nil, fmt.Errorf("getting certificates by CNPJ: %w", err)
	}
	return certs, nil
}

// ScanSummary holds aggregate counts from a scan operation.
type ScanSummary struct {
	Total        int `json:"total" yaml:"total"`
	Valid        int `json:"valid" yaml:"valid"`
	ExpiringSoon int `json:"expiring_soon" yaml:"expiring_soon"`
	Expired      int `json:"expired" yaml:"expired"`
	NotYetValid  int `json:"not_yet_valid" yaml:"not_yet_valid"`
	WithoutCNPJ  int `json:"without_cnpj" yaml:"without_cnpj"`
	ICPBrasil    int `json:"icp_brasil" yaml:"icp_brasil"`
	Failed       int `json:"failed" yaml:"failed"`
}

// GetScanSummary queries the database for aggregate counts.
func (db *DB) GetScanSummary() (*ScanSummary, error) {
	s := &ScanSummary{}

	if err := db.Get(&s.Total, "SELECT COUNT(*) FROM certificates"); err != nil {
		return nil, fmt.Errorf("counting certificates: %w", err)
	}

	var byStatus []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
	}
	if err := db.Select(&byStatus, "SELECT status, COUNT(*) AS n FROM certificates GROUP BY status"); err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	for _, row := range byStatus {
		switch icpcert.CertificateStatus(row.Status) {
		case icpcert.StatusValid:
			s.Valid = row.Count
		case icpcert.StatusExpiringSoon:
			s.ExpiringSoon = row.Count
		case icpcert.StatusExpired:
			s.Expired = row.Count
		case icpcert.StatusNotYetValid:
			s.NotYetValid = row.Count
		}
	}

	if err := db.Get(&s.WithoutCNPJ, "SELECT COUNT(*) FROM certificates WHERE cnpj IS NULL"); err != nil {
		return nil, fmt.Errorf("counting certificates without CNPJ: %w", err)
	}
	if err := db.Get(&s.ICPBrasil, "SELECT COUNT(*) FROM certificates WHERE is_icp_brasil"); err != nil {
		return nil, fmt.Errorf("counting ICP-Brasil certificates: %w", err)
	}
	if err := db.Get(&s.Failed, "SELECT COUNT(*) FROM scan_errors"); err != nil {
		return nil, fmt.Errorf("counting scan errors: %w", err)
	}

	return s, nil
}

// DumpDB logs all catalogued certificates at debug level.
func (db *DB) DumpDB() error {
	slog.Debug("dumping certificates")

	rows, err := db.Queryx("SELECT * FROM certificates ORDER BY path")
	if err != nil {
		return fmt.Errorf("querying certificates: %w", err)
	}
	defer rows.Close()

	certCount := 0
	for rows.Next() {
		var cert CertificateRecord
		if err := rows.StructScan(&cert); err != nil {
			return fmt.Errorf("scanning certificate: %w", err)
		}
		slog.Debug("certificate details",
			"path", cert.Path,
			"fingerprint", cert.Fingerprint,
			"cn", cert.CommonName.String,
			"cnpj", cert.CNPJ.String,
			"strategy", cert.CNPJStrategy.String,
			"status", cert.Status,
			"not_after", cert.NotAfter)
		certCount++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating certificates: %w", err)
	}
	slog.Debug("total certificates", "count", certCount)

	return nil
}
