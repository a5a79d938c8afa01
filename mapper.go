package icpcert

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"strings"
	"time"
)

// ParsedCertificate is the identity and validity summary of the selected
// certificate. Absent name fields are empty strings, never missing.
type ParsedCertificate struct {
	Subject      Subject  `json:"subject" yaml:"subject"`
	Issuer       Issuer   `json:"issuer" yaml:"issuer"`
	Validity     Validity `json:"validity" yaml:"validity"`
	SerialNumber string   `json:"serialNumber" yaml:"serialNumber"`
	Fingerprint  string   `json:"fingerprint" yaml:"fingerprint"`
	CNPJ         *string  `json:"cnpj" yaml:"cnpj"`
	IsICPBrasil  bool     `json:"isICPBrasil" yaml:"isICPBrasil"`
}

// Subject holds the subject distinguished-name fields. OU is the only
// repeatable field and keeps encounter order.
type Subject struct {
	CN string   `json:"CN" yaml:"CN"`
	O  string   `json:"O" yaml:"O"`
	OU []string `json:"OU" yaml:"OU"`
	C  string   `json:"C" yaml:"C"`
	ST string   `json:"ST" yaml:"ST"`
	L  string   `json:"L" yaml:"L"`
}

// Issuer holds the issuer fields used for display and ICP-Brasil detection.
type Issuer struct {
	CN string `json:"CN" yaml:"CN"`
	O  string `json:"O" yaml:"O"`
}

// Validity is the certificate's time window evaluated at a given instant.
type Validity struct {
	NotBefore     time.Time `json:"notBefore" yaml:"notBefore"`
	NotAfter      time.Time `json:"notAfter" yaml:"notAfter"`
	IsValid       bool      `json:"isValid" yaml:"isValid"`
	DaysRemaining int       `json:"daysRemaining" yaml:"daysRemaining"`
}

// CNPJValue returns the CNPJ or "" when none was found.
func (p ParsedCertificate) CNPJValue() string {
	if p.CNPJ == nil {
		return ""
	}
	return *p.CNPJ
}

var (
	oidOrganization       = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrganizationalUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
	oidCountry            = asn1.ObjectIdentifier{2, 5, 4, 6}
	oidProvince           = asn1.ObjectIdentifier{2, 5, 4, 8}
	oidLocality           = asn1.ObjectIdentifier{2, 5, 4, 7}
)

const icpBrasilMarker = "icp-brasil"

const secondsPerDay = 24 * 60 * 60

// MapCertificate builds the ParsedCertificate for cert as seen at now.
func MapCertificate(cert *x509.Certificate, now time.Time) ParsedCertificate {
	issuerO := firstAttribute(cert.Issuer.Names, oidOrganization)

	p := ParsedCertificate{
		Subject: Subject{
			CN: firstAttribute(cert.Subject.Names, oidCommonName),
			O:  firstAttribute(cert.Subject.Names, oidOrganization),
			OU: allAttributes(cert.Subject.Names, oidOrganizationalUnit),
			C:  firstAttribute(cert.Subject.Names, oidCountry),
			ST: firstAttribute(cert.Subject.Names, oidProvince),
			L:  firstAttribute(cert.Subject.Names, oidLocality),
		},
		Issuer: Issuer{
			CN: firstAttribute(cert.Issuer.Names, oidCommonName),
			O:  issuerO,
		},
		Validity:     validityAt(cert.NotBefore, cert.NotAfter, now),
		SerialNumber: serialHex(cert),
		Fingerprint:  CertFingerprintSHA1(cert),
		IsICPBrasil:  strings.Contains(strings.ToLower(issuerO), icpBrasilMarker),
	}
	if cnpj, ok := ExtractCNPJ(cert); ok {
		p.CNPJ = &cnpj
	}
	return p
}

func validityAt(notBefore, notAfter, now time.Time) Validity {
	// Whole seconds rather than time.Duration: notAfter may be 9999-12-31,
	// past Duration's ~292 year range.
	after := now.After(notAfter)
	secs := notAfter.Unix() - now.Unix()
	nanos := int64(notAfter.Nanosecond() - now.Nanosecond())
	if after {
		secs, nanos = -secs, -nanos
	}
	if nanos < 0 {
		secs--
		nanos += int64(time.Second)
	}
	days := secs / secondsPerDay
	if secs%secondsPerDay != 0 || nanos != 0 {
		days++
	}
	if after {
		days = -days
	}
	return Validity{
		NotBefore:     notBefore,
		NotAfter:      notAfter,
		IsValid:       !now.Before(notBefore) && !now.After(notAfter),
		DaysRemaining: int(days),
	}
}

// serialHex renders the serial as the hex of its DER INTEGER content: even
// length, leading zero octet kept, negatives in two's complement.
func serialHex(cert *x509.Certificate) string {
	if cert.SerialNumber == nil {
		return ""
	}
	der, err := asn1.Marshal(cert.SerialNumber)
	if err != nil {
		return cert.SerialNumber.Text(16)
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return cert.SerialNumber.Text(16)
	}
	return hex.EncodeToString(raw.Bytes)
}

// firstAttribute returns the first string value tagged oid, or "". Values
// of non-string types are treated as absent.
func firstAttribute(names []pkix.AttributeTypeAndValue, oid asn1.ObjectIdentifier) string {
	for _, atv := range names {
		if !atv.Type.Equal(oid) {
			continue
		}
		if s, ok := atv.Value.(string); ok {
			return s
		}
	}
	return ""
}

// allAttributes returns every string value tagged oid in encounter order.
// The result is never nil.
func allAttributes(names []pkix.AttributeTypeAndValue, oid asn1.ObjectIdentifier) []string {
	values := []string{}
	for _, atv := range names {
		if !atv.Type.Equal(oid) {
			continue
		}
		if s, ok := atv.Value.(string); ok {
			values = append(values, s)
		}
	}
	return values
}
