package icpcert

import "fmt"

// CertificateStatus is the display classification of a parsed certificate.
type CertificateStatus string

const (
	StatusValid        CertificateStatus = "VALID"
	StatusExpiringSoon CertificateStatus = "EXPIRING_SOON"
	StatusExpired      CertificateStatus = "EXPIRED"
	StatusNotYetValid  CertificateStatus = "NOT_YET_VALID"
)

// ExpiringSoonDays is the window in which a valid certificate is reported
// as EXPIRING_SOON.
const ExpiringSoonDays = 30

// Status classifies the certificate from its evaluated validity.
func (p ParsedCertificate) Status() CertificateStatus {
	v := p.Validity
	switch {
	case v.IsValid && v.DaysRemaining <= ExpiringSoonDays:
		return StatusExpiringSoon
	case v.IsValid:
		return StatusValid
	case v.DaysRemaining < 0:
		return StatusExpired
	default:
		return StatusNotYetValid
	}
}

// FormatCNPJ renders a 14-digit CNPJ with the usual mask
// (12.345.678/0001-99). Any other input is returned unchanged.
func FormatCNPJ(cnpj string) string {
	if len(cnpj) != cnpjLength || onlyDigits(cnpj) != cnpj {
		return cnpj
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", cnpj[0:2], cnpj[2:5], cnpj[5:8], cnpj[8:12], cnpj[12:14])
}

// ValidCNPJChecksum reports whether a 14-digit CNPJ has correct mod-11 check
// digits. Extraction never applies this; callers decide whether to warn.
func ValidCNPJChecksum(cnpj string) bool {
	if len(cnpj) != cnpjLength || onlyDigits(cnpj) != cnpj {
		return false
	}
	allSame := true
	for i := 1; i < len(cnpj); i++ {
		if cnpj[i] != cnpj[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}
	return checkDigit(cnpj[:12]) == cnpj[12] && checkDigit(cnpj[:13]) == cnpj[13]
}

// checkDigit computes the next CNPJ check digit for the given prefix. The
// weights cycle 2..9 from the rightmost digit.
func checkDigit(prefix string) byte {
	sum := 0
	weight := 2
	for i := len(prefix) - 1; i >= 0; i-- {
		sum += int(prefix[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}
