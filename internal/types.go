package internal

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScanConfig holds the runtime configuration of a scan.
type ScanConfig struct {
	InputPath string
	Passwords []string
	DB        *DB
	// Now is the instant validity is evaluated at. Zero means time.Now().
	Now time.Time
	// Extensions limits which files are opened. Empty means DefaultScanExtensions.
	Extensions []string
}

// CertificateRecord is one catalogued certificate. A certificate found in
// several files is stored once per path.
type CertificateRecord struct {
	Fingerprint  string         `db:"fingerprint"`
	Path         string         `db:"path"`
	Source       string         `db:"source"`
	SerialNumber string         `db:"serial_number"`
	CommonName   sql.NullString `db:"common_name"`
	Organization sql.NullString `db:"organization"`
	IssuerCN     sql.NullString `db:"issuer_cn"`
	IssuerO      sql.NullString `db:"issuer_o"`
	CNPJ         sql.NullString `db:"cnpj"`
	CNPJStrategy sql.NullString `db:"cnpj_strategy"`
	NotBefore    time.Time      `db:"not_before"`
	NotAfter     time.Time      `db:"not_after"`
	Status       string         `db:"status"`
	IsICPBrasil  bool           `db:"is_icp_brasil"`
	SubjectJSON  types.JSONText `db:"subject"`
	ScannedAt    time.Time      `db:"scanned_at"`
}

// ScanErrorRecord records a file that could not be parsed.
type ScanErrorRecord struct {
	Path      string    `db:"path"`
	Kind      string    `db:"kind"`
	Message   string    `db:"message"`
	ScannedAt time.Time `db:"scanned_at"`
}
