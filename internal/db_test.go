package internal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/sensiblebit/icpcert"
)

func testRecord(fingerprint, path, cnpj string, status icpcert.CertificateStatus, notAfter time.Time) CertificateRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return CertificateRecord{
		Fingerprint:  fingerprint,
		Path:         path,
		Source:       "pkcs12-chain",
		SerialNumber: "1a2b",
		CommonName:   sql.NullString{String: "ACME LTDA", Valid: true},
		CNPJ:         nullString(cnpj),
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     notAfter,
		Status:       string(status),
		IsICPBrasil:  true,
		SubjectJSON:  types.JSONText(`{"CN":"ACME LTDA"}`),
		ScannedAt:    now,
	}
}

func TestNewDB_InMemory(t *testing.T) {
	db := newTestDB(t)

	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM certificates"); err != nil {
		t.Errorf("certificates table should exist: %v", err)
	}
	if err := db.Get(&count, "SELECT COUNT(*) FROM scan_errors"); err != nil {
		t.Errorf("scan_errors table should exist: %v", err)
	}
}

func TestInsertAndGetCertificate(t *testing.T) {
	db := newTestDB(t)

	notAfter := time.Now().UTC().Truncate(time.Second).Add(90 * 24 * time.Hour)
	rec := testRecord("aa11", "certs/acme.pfx", "11222333000181", icpcert.StatusValid, notAfter)
	if err := db.InsertCertificate(rec); err != nil {
		t.Fatalf("InsertCertificate: %v", err)
	}

	got, err := db.GetCertByFingerprint("aa11")
	if err != nil {
		t.Fatalf("GetCertByFingerprint: %v", err)
	}
	if got == nil {
		t.Fatal("GetCertByFingerprint returned nil")
	}
	if got.Path != "certs/acme.pfx" || got.CNPJ.String != "11222333000181" {
		t.Errorf("got %+v", got)
	}
	if !got.NotAfter.Equal(notAfter) {
		t.Errorf("NotAfter = %v, want %v", got.NotAfter, notAfter)
	}
	if !got.IsICPBrasil {
		t.Error("IsICPBrasil did not round-trip")
	}
	if string(got.SubjectJSON) != `{"CN":"ACME LTDA"}` {
		t.Errorf("SubjectJSON = %s", got.SubjectJSON)
	}

	missing, err := db.GetCertByFingerprint("ffff")
	if err != nil || missing != nil {
		t.Errorf("missing fingerprint = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestInsertDuplicateCertificate_Replaced(t *testing.T) {
	// WHY: Rescanning the same tree must not duplicate rows and must keep the
	// latest status; the same certificate at another path is a separate copy
	// worth reporting.
	db := newTestDB(t)

	notAfter := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rec := testRecord("dup", "a.pfx", "", icpcert.StatusExpiringSoon, notAfter)
	if err := db.InsertCertificate(rec); err != nil {
		t.Fatalf("InsertCertificate: %v", err)
	}
	rec.Status = string(icpcert.StatusExpired)
	if err := db.InsertCertificate(rec); err != nil {
		t.Fatalf("InsertCertificate: %v", err)
	}
	rec.Path = "b.pfx"
	if err := db.InsertCertificate(rec); err != nil {
		t.Fatalf("InsertCertificate: %v", err)
	}

	all, err := db.GetAllCerts()
	if err != nil {
		t.Fatalf("GetAllCerts: %v", err)
	}
	if len(all) != 2 || all[0].Path != "a.pfx" || all[1].Path != "b.pfx" {
		t.Fatalf("GetAllCerts = %d rows", len(all))
	}
	if all[0].Status != string(icpcert.StatusExpired) {
		t.Errorf("a.pfx status = %q, want the rescanned EXPIRED", all[0].Status)
	}
}

func TestClearPath(t *testing.T) {
	// WHY: A path's earlier certificate and failure rows are dropped before a
	// rescan records its new result; other paths are untouched.
	db := newTestDB(t)

	notAfter := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	for _, r := range []CertificateRecord{
		testRecord("a", "a.pfx", "", icpcert.StatusValid, notAfter),
		testRecord("b", "b.pfx", "", icpcert.StatusValid, notAfter),
	} {
		if err := db.InsertCertificate(r); err != nil {
			t.Fatalf("InsertCertificate: %v", err)
		}
	}
	for _, path := range []string{"a.pfx", "c.pfx"} {
		if err := db.InsertScanError(ScanErrorRecord{Path: path, Kind: "k", Message: "m", ScannedAt: time.Now()}); err != nil {
			t.Fatalf("InsertScanError: %v", err)
		}
	}

	if err := db.ClearPath("a.pfx"); err != nil {
		t.Fatalf("ClearPath: %v", err)
	}

	all, err := db.GetAllCerts()
	if err != nil {
		t.Fatalf("GetAllCerts: %v", err)
	}
	if len(all) != 1 || all[0].Path != "b.pfx" {
		t.Errorf("certificates after clear = %+v", all)
	}
	errs, err := db.GetScanErrors()
	if err != nil {
		t.Fatalf("GetScanErrors: %v", err)
	}
	if len(errs) != 1 || errs[0].Path != "c.pfx" {
		t.Errorf("scan errors after clear = %+v", errs)
	}
}

func TestGetCertsByCNPJ_NewestFirst(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	older := testRecord("old", "old.pfx", "11222333000181", icpcert.StatusExpired, base.Add(-24*time.Hour))
	newer := testRecord("new", "new.pfx", "11222333000181", icpcert.StatusValid, base.Add(300*24*time.Hour))
	other := testRecord("other", "other.pfx", "11444777000161", icpcert.StatusValid, base.Add(24*time.Hour))
	for _, r := range []CertificateRecord{older, newer, other} {
		if err := db.InsertCertificate(r); err != nil {
			t.Fatalf("InsertCertificate: %v", err)
		}
	}

	got, err := db.GetCertsByCNPJ("11222333000181")
	if err != nil {
		t.Fatalf("GetCertsByCNPJ: %v", err)
	}
	if len(got) != 2 || got[0].Fingerprint != "new" || got[1].Fingerprint != "old" {
		t.Errorf("GetCertsByCNPJ order wrong: %+v", got)
	}
}

func TestGetScanSummary(t *testing.T) {
	// WHY: The scan summary line is built from these counts; each status
	// bucket, the CNPJ gap, and failures must be counted independently.
	db := newTestDB(t)

	notAfter := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	records := []CertificateRecord{
		testRecord("1", "1.pfx", "11222333000181", icpcert.StatusValid, notAfter),
		testRecord("2", "2.pfx", "", icpcert.StatusValid, notAfter),
		testRecord("3", "3.pfx", "11222333000181", icpcert.StatusExpiringSoon, notAfter),
		testRecord("4", "4.pfx", "", icpcert.StatusExpired, notAfter),
		testRecord("5", "5.pfx", "11222333000181", icpcert.StatusNotYetValid, notAfter),
	}
	records[4].IsICPBrasil = false
	for _, r := range records {
		if err := db.InsertCertificate(r); err != nil {
			t.Fatalf("InsertCertificate: %v", err)
		}
	}
	if err := db.InsertScanError(ScanErrorRecord{Path: "bad.pfx", Kind: "bad password or corrupt container", Message: "x", ScannedAt: time.Now()}); err != nil {
		t.Fatalf("InsertScanError: %v", err)
	}

	s, err := db.GetScanSummary()
	if err != nil {
		t.Fatalf("GetScanSummary: %v", err)
	}
	want := ScanSummary{Total: 5, Valid: 2, ExpiringSoon: 1, Expired: 1, NotYetValid: 1, WithoutCNPJ: 2, ICPBrasil: 4, Failed: 1}
	if *s != want {
		t.Errorf("GetScanSummary = %+v, want %+v", *s, want)
	}
}

func TestSaveAndLoadFromDisk(t *testing.T) {
	// WHY: --db persists a catalog between runs; a saved catalog must load
	// back with certificates and failures intact.
	src := newTestDB(t)

	notAfter := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	if err := src.InsertCertificate(testRecord("aa", "a.pfx", "11222333000181", icpcert.StatusValid, notAfter)); err != nil {
		t.Fatalf("InsertCertificate: %v", err)
	}
	if err := src.InsertScanError(ScanErrorRecord{Path: "bad.p12", Kind: "no certificate found", Message: "empty", ScannedAt: time.Now()}); err != nil {
		t.Fatalf("InsertScanError: %v", err)
	}

	path := filepath.Join(t.TempDir(), "catalog.db")
	if err := src.SaveToDisk(path); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	dst := newTestDB(t)
	if err := dst.LoadFromDisk(path); err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}
	got, err := dst.GetCertByFingerprint("aa")
	if err != nil || got == nil {
		t.Fatalf("loaded certificate missing: %v", err)
	}
	errs, err := dst.GetScanErrors()
	if err != nil {
		t.Fatalf("GetScanErrors: %v", err)
	}
	if len(errs) != 1 || errs[0].Path != "bad.p12" {
		t.Errorf("GetScanErrors = %+v", errs)
	}
}

func TestNewCertificateRecord(t *testing.T) {
	cnpj := "11222333000181"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &InspectResult{
		Path:         "x.pfx",
		Source:       "pkcs12-chain",
		Status:       icpcert.StatusValid,
		CNPJStrategy: "subject-oid",
		EvaluatedAt:  now,
		Certificate: icpcert.ParsedCertificate{
			Subject:     icpcert.Subject{CN: "ACME", OU: []string{"A", "B"}},
			Fingerprint: "ff",
			CNPJ:        &cnpj,
		},
	}
	rec, err := NewCertificateRecord(r)
	if err != nil {
		t.Fatalf("NewCertificateRecord: %v", err)
	}
	if rec.CNPJ.String != cnpj || !rec.CNPJ.Valid || rec.Organization.Valid {
		t.Errorf("null handling wrong: %+v", rec)
	}
	if !rec.ScannedAt.Equal(now) {
		t.Errorf("ScannedAt = %v", rec.ScannedAt)
	}
	var subject icpcert.Subject
	if err := rec.SubjectJSON.Unmarshal(&subject); err != nil {
		t.Fatalf("SubjectJSON: %v", err)
	}
	if len(subject.OU) != 2 || subject.OU[1] != "B" {
		t.Errorf("subject OU = %v", subject.OU)
	}
}
