package icpcert

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	p12bags "github.com/gematik/zero-lab/go/pkcs12"
	"github.com/smallstep/pkcs7"
	xpkcs12 "golang.org/x/crypto/pkcs12" //nolint:staticcheck // deprecated but needed for RC2 safes with several keys
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// DecodeContainer decrypts a PKCS#12 (or JKS) container and returns its
// certificates in container order. An empty password is accepted for
// containers exported without protection.
//
// Order: for PKCS#12, certificate bags in the order they appear across the
// authenticated safe. For JKS, aliases sorted alphabetically; a private key
// entry contributes its chain in chain order.
//
// On failure no entries are returned and the error is a *DecodeError.
func DecodeContainer(data []byte, password string) ([]Entry, error) {
	if bytes.HasPrefix(data, jksMagic) {
		return decodeJKSEntries(data, password)
	}
	return decodePKCS12Entries(data, password)
}

func decodePKCS12Entries(data []byte, password string) ([]Entry, error) {
	// Key bags are decrypted by the library but never kept.
	bags, err := p12bags.Decode(data, []byte(password))
	if err == nil {
		return pkcs12BagEntries(bags)
	}
	// Usually an RC2-encrypted safe, which older exports still use.
	if errors.Is(err, p12bags.ErrUnsupportedAlgorithm) {
		return decodeLegacyPKCS12Entries(data, password)
	}
	return nil, badPasswordOrCorrupt(fmt.Errorf("decoding PKCS#12: %w", err))
}

func pkcs12BagEntries(bags *p12bags.Bags) ([]Entry, error) {
	if len(bags.Certificates) == 0 {
		return nil, &DecodeError{Kind: NoCertificateFound}
	}
	certs := make([]*x509.Certificate, 0, len(bags.Certificates))
	for i, bag := range bags.Certificates {
		cert, err := x509.ParseCertificate(bag.Raw)
		if err != nil {
			return nil, badPasswordOrCorrupt(fmt.Errorf("parsing certificate bag %d: %w", i, err))
		}
		certs = append(certs, cert)
	}
	return entriesFrom(pkcs12Source(len(bags.PrivateKeys) > 0), certs), nil
}

// decodeLegacyPKCS12Entries enumerates the bags of a container encrypted with
// the pre-PBES2 ciphers (RC2, 3DES).
func decodeLegacyPKCS12Entries(data []byte, password string) ([]Entry, error) {
	blocks, err := xpkcs12.ToPEM(data, password)
	if err != nil {
		if errors.Is(err, xpkcs12.ErrIncorrectPassword) {
			return nil, badPasswordOrCorrupt(fmt.Errorf("decoding PKCS#12: %w", err))
		}
		// ToPEM rejects attributes it does not know (Java trust stores) and
		// Ed25519 keys.
		return decodeSingleKeyPKCS12Entries(data, password)
	}

	var (
		certs  []*x509.Certificate
		hasKey bool
	)
	for _, block := range blocks {
		if block.Type != "CERTIFICATE" {
			hasKey = true
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, badPasswordOrCorrupt(fmt.Errorf("parsing certificate bag %d: %w", len(certs), err))
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, &DecodeError{Kind: NoCertificateFound}
	}
	return entriesFrom(pkcs12Source(hasKey), certs), nil
}

// decodeSingleKeyPKCS12Entries handles the two layouts go-pkcs12 accepts: one
// key with its chain, or a Java trust store.
func decodeSingleKeyPKCS12Entries(data []byte, password string) ([]Entry, error) {
	_, leaf, caCerts, err := gopkcs12.DecodeChain(data, password)
	if err == nil {
		return entriesFrom(SourcePKCS12Chain, append([]*x509.Certificate{leaf}, caCerts...)), nil
	}
	certs, tsErr := gopkcs12.DecodeTrustStore(data, password)
	if tsErr != nil {
		return nil, badPasswordOrCorrupt(fmt.Errorf("decoding PKCS#12: %w", errors.Join(err, tsErr)))
	}
	if len(certs) == 0 {
		return nil, &DecodeError{Kind: NoCertificateFound}
	}
	return entriesFrom(SourcePKCS12TrustStore, certs), nil
}

func pkcs12Source(hasKey bool) EntrySource {
	if hasKey {
		return SourcePKCS12Chain
	}
	return SourcePKCS12TrustStore
}

func entriesFrom(source EntrySource, certs []*x509.Certificate) []Entry {
	entries := make([]Entry, 0, len(certs))
	for _, cert := range certs {
		entries = append(entries, Entry{Index: len(entries), Source: source, Cert: cert})
	}
	return entries
}

// validatePKCS12KeyType checks that the private key is a supported type for PKCS#12 encoding.
func validatePKCS12KeyType(privateKey crypto.PrivateKey) error {
	switch privateKey.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		return nil
	default:
		return fmt.Errorf("unsupported private key type %T", privateKey)
	}
}

// EncodePKCS12 creates a PKCS#12/PFX bundle from a private key, leaf cert,
// CA chain, and password. The leaf is written as the first certificate bag.
func EncodePKCS12(privateKey crypto.PrivateKey, leaf *x509.Certificate, caCerts []*x509.Certificate, password string) ([]byte, error) {
	if err := validatePKCS12KeyType(privateKey); err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, errors.New("leaf certificate cannot be nil")
	}
	return gopkcs12.Modern.Encode(privateKey, leaf, caCerts, password)
}

// EncodePKCS12Legacy is EncodePKCS12 using the 3DES/RC2 ciphers that older
// Windows certificate exports (and most A1 certificates in circulation) use.
func EncodePKCS12Legacy(privateKey crypto.PrivateKey, leaf *x509.Certificate, caCerts []*x509.Certificate, password string) ([]byte, error) {
	if err := validatePKCS12KeyType(privateKey); err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, errors.New("leaf certificate cannot be nil")
	}
	return gopkcs12.LegacyRC2.Encode(privateKey, leaf, caCerts, password)
}

// EncodePKCS12TrustStore creates a certificate-only PKCS#12 file.
func EncodePKCS12TrustStore(certs []*x509.Certificate, password string) ([]byte, error) {
	return gopkcs12.Modern.EncodeTrustStore(certs, password)
}

// EncodePKCS7 creates a certs-only PKCS#7/P7B bundle from a certificate chain.
func EncodePKCS7(certs []*x509.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, errors.New("no certificates to encode")
	}
	var derBytes []byte
	for _, cert := range certs {
		derBytes = append(derBytes, cert.Raw...)
	}
	return pkcs7.DegenerateCertificate(derBytes)
}

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns the certificates it contains.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}
