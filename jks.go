package icpcert

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// decodeJKSEntries loads a Java KeyStore and returns its certificates as
// entries. The store password verifies integrity; key entries are never
// decrypted, only their certificate chains are read.
func decodeJKSEntries(data []byte, password string) ([]Entry, error) {
	ks := keystore.New(keystore.WithOrderedAliases())
	if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return nil, badPasswordOrCorrupt(fmt.Errorf("loading JKS: %w", err))
	}

	var entries []Entry
	for _, alias := range ks.Aliases() {
		switch {
		case ks.IsTrustedCertificateEntry(alias):
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				return nil, badPasswordOrCorrupt(fmt.Errorf("reading JKS entry %q: %w", alias, err))
			}
			cert, err := x509.ParseCertificate(entry.Certificate.Content)
			if err != nil {
				return nil, badPasswordOrCorrupt(fmt.Errorf("parsing JKS certificate %q: %w", alias, err))
			}
			entries = append(entries, Entry{Index: len(entries), Source: SourceJKSTrusted, Cert: cert})

		case ks.IsPrivateKeyEntry(alias):
			chain, err := ks.GetPrivateKeyEntryCertificateChain(alias)
			if err != nil {
				return nil, badPasswordOrCorrupt(fmt.Errorf("reading JKS chain %q: %w", alias, err))
			}
			for _, c := range chain {
				cert, err := x509.ParseCertificate(c.Content)
				if err != nil {
					return nil, badPasswordOrCorrupt(fmt.Errorf("parsing JKS chain %q: %w", alias, err))
				}
				entries = append(entries, Entry{Index: len(entries), Source: SourceJKSKeyChain, Cert: cert})
			}
		}
	}

	if len(entries) == 0 {
		return nil, &DecodeError{Kind: NoCertificateFound}
	}
	return entries, nil
}

// EncodeJKS creates a Java KeyStore containing a private key entry with its
// certificate chain under the given alias. The same password protects both
// the store and the key entry (standard Java convention).
func EncodeJKS(alias string, privateKey crypto.PrivateKey, leaf *x509.Certificate, caCerts []*x509.Certificate, password string) ([]byte, error) {
	if leaf == nil {
		return nil, errors.New("leaf certificate cannot be nil")
	}
	pkcs8Key, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}

	chain := []keystore.Certificate{
		{Type: "X.509", Content: leaf.Raw},
	}
	for _, ca := range caCerts {
		chain = append(chain, keystore.Certificate{
			Type:    "X.509",
			Content: ca.Raw,
		})
	}

	ks := keystore.New()
	if err := ks.SetPrivateKeyEntry(alias, keystore.PrivateKeyEntry{
		CreationTime:     time.Now(),
		PrivateKey:       pkcs8Key,
		CertificateChain: chain,
	}, []byte(password)); err != nil {
		return nil, fmt.Errorf("setting JKS private key entry: %w", err)
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJKSTrustStore creates a Java KeyStore of trusted certificate entries,
// one per certificate, under the given aliases.
func EncodeJKSTrustStore(aliases []string, certs []*x509.Certificate, password string) ([]byte, error) {
	if len(aliases) != len(certs) {
		return nil, fmt.Errorf("got %d aliases for %d certificates", len(aliases), len(certs))
	}
	ks := keystore.New()
	for i, cert := range certs {
		if err := ks.SetTrustedCertificateEntry(aliases[i], keystore.TrustedCertificateEntry{
			CreationTime: time.Now(),
			Certificate:  keystore.Certificate{Type: "X.509", Content: cert.Raw},
		}); err != nil {
			return nil, fmt.Errorf("setting JKS trusted entry %q: %w", aliases[i], err)
		}
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}
