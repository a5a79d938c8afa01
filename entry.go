package icpcert

import "crypto/x509"

// EntrySource tags where in a container an entry came from.
type EntrySource int

const (
	// SourcePKCS12Chain is a certificate bag from a PKCS#12 file that also
	// carries at least one private key.
	SourcePKCS12Chain EntrySource = iota + 1
	// SourcePKCS12TrustStore is a certificate bag from a PKCS#12 file with
	// no key bags.
	SourcePKCS12TrustStore
	// SourceJKSTrusted is a JKS trusted certificate entry.
	SourceJKSTrusted
	// SourceJKSKeyChain is a certificate from a JKS private key entry's chain.
	SourceJKSKeyChain
	// SourceCertificateFile is a bare certificate read from DER, PEM, or PKCS#7.
	SourceCertificateFile
)

func (s EntrySource) String() string {
	switch s {
	case SourcePKCS12Chain:
		return "pkcs12-chain"
	case SourcePKCS12TrustStore:
		return "pkcs12-truststore"
	case SourceJKSTrusted:
		return "jks-trusted"
	case SourceJKSKeyChain:
		return "jks-keychain"
	case SourceCertificateFile:
		return "certificate"
	default:
		return "unknown"
	}
}

// Entry is one decoded certificate inside a container. Index is its position
// in decoder output order, which SelectEntry relies on.
type Entry struct {
	Index  int
	Source EntrySource
	Cert   *x509.Certificate
}

// CertificateEntries wraps bare certificates as entries, keeping their order.
func CertificateEntries(certs []*x509.Certificate) []Entry {
	return entriesFrom(SourceCertificateFile, certs)
}
