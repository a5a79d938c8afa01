package icpcert

import (
	"crypto/x509"
	"encoding/asn1"
	"regexp"
	"strings"
)

// ICP-Brasil object identifiers (DOC-ICP-04, section 7.1.2.3).
var (
	// OIDCNPJ tags the 14-digit CNPJ of the legal entity holding the certificate.
	OIDCNPJ = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}

	oidCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}
)

const cnpjLength = 14

// cnpjInCommonName matches a separator (':' or whitespace) followed by a run
// of exactly 14 digits. The trailing group rejects longer runs.
var cnpjInCommonName = regexp.MustCompile(`[:\s](\d{14})(?:\D|$)`)

// cnpjStrategy resolves a CNPJ from one place in the certificate.
type cnpjStrategy struct {
	name    string
	extract func(cert *x509.Certificate) (string, bool)
}

// cnpjStrategies is evaluated in order; the first hit wins. Most authorities
// put the CNPJ in the SAN otherName, a few in the subject, and older A1
// issuances only in the CN as "RAZAO SOCIAL:CNPJ".
var cnpjStrategies = []cnpjStrategy{
	{name: "subject-oid", extract: cnpjFromSubjectAttribute},
	{name: "san-othername", extract: cnpjFromSANOtherName},
	{name: "common-name", extract: cnpjFromCommonName},
}

// CNPJStrategies returns the names of the extraction strategies in
// evaluation order.
func CNPJStrategies() []string {
	names := make([]string, len(cnpjStrategies))
	for i, s := range cnpjStrategies {
		names[i] = s.name
	}
	return names
}

// ExtractCNPJ returns the certificate holder's CNPJ as exactly 14 ASCII
// digits. No check-digit validation is done.
func ExtractCNPJ(cert *x509.Certificate) (string, bool) {
	cnpj, _, ok := ExplainCNPJ(cert)
	return cnpj, ok
}

// ExplainCNPJ is ExtractCNPJ that also reports which strategy resolved it.
func ExplainCNPJ(cert *x509.Certificate) (cnpj, strategy string, ok bool) {
	if cert == nil {
		return "", "", false
	}
	for _, s := range cnpjStrategies {
		if v, found := s.extract(cert); found {
			return v, s.name, true
		}
	}
	return "", "", false
}

func cnpjFromSubjectAttribute(cert *x509.Certificate) (string, bool) {
	for _, atv := range cert.Subject.Names {
		if !atv.Type.Equal(OIDCNPJ) {
			continue
		}
		var raw string
		switch v := atv.Value.(type) {
		case string:
			raw = v
		case []byte:
			raw = string(v)
		default:
			continue
		}
		if digits, ok := NormalizeCNPJ(raw); ok {
			return digits, true
		}
	}
	return "", false
}

func cnpjFromSANOtherName(cert *x509.Certificate) (string, bool) {
	for _, on := range sanOtherNames(cert) {
		if !on.TypeID.Equal(OIDCNPJ) {
			continue
		}
		if digits, ok := NormalizeCNPJ(string(on.Value)); ok {
			return digits, true
		}
	}
	return "", false
}

func cnpjFromCommonName(cert *x509.Certificate) (string, bool) {
	m := cnpjInCommonName.FindStringSubmatch(firstAttribute(cert.Subject.Names, oidCommonName))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeCNPJ strips formatting from a CNPJ value. ok is false unless
// exactly 14 digits remain; extraction skips such values as malformed.
func NormalizeCNPJ(raw string) (cnpj string, ok bool) {
	digits := onlyDigits(raw)
	return digits, len(digits) == cnpjLength
}

// onlyDigits strips every byte that is not an ASCII digit.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
