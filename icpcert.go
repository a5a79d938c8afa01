// Package icpcert decodes PKCS#12 (and Java KeyStore) containers holding
// Brazilian ICP-Brasil A1 certificates and reports the holder's identity,
// validity window, and CNPJ taxpayer ID.
package icpcert

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ParsePEMCertificates parses all certificates from a PEM bundle.
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}

// ParseCertificatesAny attempts to parse bare certificates from raw bytes.
// PEM text (may contain several) is recognized by its armor; binary input is
// tried as DER (a single .cer), then PKCS#7 (.p7b chains as distributed by
// ICP-Brasil authorities).
func ParseCertificatesAny(data []byte) ([]*x509.Certificate, error) {
	if IsPEM(data) {
		return ParsePEMCertificates(data)
	}
	cert, derErr := x509.ParseCertificate(data)
	if derErr == nil {
		return []*x509.Certificate{cert}, nil
	}
	certs, p7Err := DecodePKCS7(data)
	if p7Err == nil {
		return certs, nil
	}
	return nil, fmt.Errorf("not DER (%v) or PKCS#7 (%v)", derErr, p7Err)
}

// IsPEM reports whether data looks like PEM text.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// CertFingerprint returns the SHA-256 fingerprint of a certificate as a lowercase hex string.
func CertFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:])
}

// CertFingerprintSHA1 returns the SHA-1 fingerprint of a certificate as a lowercase hex string.
// This is the fingerprint shown by Windows certificate stores and most
// ICP-Brasil tooling.
func CertFingerprintSHA1(cert *x509.Certificate) string {
	hash := sha1.Sum(cert.Raw)
	return hex.EncodeToString(hash[:])
}

// ColonHex formats a byte slice as colon-separated uppercase hex (e.g. "5A:3B:1C").
func ColonHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, ":")
}

// DefaultPasswords returns the list of passwords tried by default when no
// password was supplied for a container. Returns a fresh copy each call.
func DefaultPasswords() []string {
	return []string{"", "password", "changeit", "1234"}
}

// DeduplicatePasswords merges additional passwords with the defaults and removes
// duplicates while preserving order. Defaults come first, followed by any extra
// passwords not already in the list.
func DeduplicatePasswords(extra []string) []string {
	all := append(DefaultPasswords(), extra...)
	seen := make(map[string]bool, len(all))
	result := make([]string, 0, len(all))
	for _, p := range all {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}
