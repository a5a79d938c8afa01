package icpcert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	p12bags "github.com/gematik/zero-lab/go/pkcs12"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	testOIDOrganizationalUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
	testOIDCPF                = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}
)

// testCA is a signing authority for fixture certificates.
type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// leafSpec describes a fixture certificate. Zero values are left out of the
// certificate.
type leafSpec struct {
	cn        string
	org       string
	ous       []string
	country   string
	state     string
	locality  string
	cnpjAttr  string // subject attribute 2.16.76.1.3.3
	sanCNPJ   string // SAN otherName 2.16.76.1.3.3, OCTET STRING
	notBefore time.Time
	notAfter  time.Time
}

func randomSerial(t *testing.T) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}
	return serial
}

func newECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// newICPBrasilCA creates a self-signed authority named like an ICP-Brasil
// intermediate.
func newICPBrasilCA(t *testing.T) testCA {
	t.Helper()
	key := newECKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject: pkix.Name{
			CommonName:   "AC Teste RFB v5",
			Organization: []string{"ICP-Brasil"},
			Country:      []string{"BR"},
		},
		NotBefore:             time.Now().Add(-24 * time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA cert: %v", err)
	}
	return testCA{cert: cert, key: key}
}

// newLeaf creates a certificate described by opts, signed by ca.
func newLeaf(t *testing.T, ca testCA, opts leafSpec) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key := newECKey(t)

	notBefore, notAfter := opts.notBefore, opts.notAfter
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-1 * time.Hour)
	}
	if notAfter.IsZero() {
		notAfter = time.Now().Add(365 * 24 * time.Hour)
	}

	subject := pkix.Name{CommonName: opts.cn}
	if opts.org != "" {
		subject.Organization = []string{opts.org}
	}
	if opts.country != "" {
		subject.Country = []string{opts.country}
	}
	if opts.state != "" {
		subject.Province = []string{opts.state}
	}
	if opts.locality != "" {
		subject.Locality = []string{opts.locality}
	}
	// Each ExtraNames entry becomes its own RDN, which keeps OU order.
	for _, ou := range opts.ous {
		subject.ExtraNames = append(subject.ExtraNames, pkix.AttributeTypeAndValue{Type: testOIDOrganizationalUnit, Value: ou})
	}
	if opts.cnpjAttr != "" {
		subject.ExtraNames = append(subject.ExtraNames, pkix.AttributeTypeAndValue{Type: OIDCNPJ, Value: opts.cnpjAttr})
	}

	tmpl := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject:      subject,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if opts.sanCNPJ != "" {
		tmpl.ExtraExtensions = []pkix.Extension{sanExtension(t, []otherNameValue{{oid: OIDCNPJ, octets: opts.sanCNPJ}})}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse leaf cert: %v", err)
	}
	return cert, key
}

// otherNameValue is one otherName for sanExtension. Exactly one of octets or
// printable is encoded as the value.
type otherNameValue struct {
	oid       asn1.ObjectIdentifier
	octets    string
	printable string
}

// sanExtension builds a SubjectAltName extension holding the given otherNames
// followed by dnsNames.
func sanExtension(t *testing.T, names []otherNameValue, dnsNames ...string) pkix.Extension {
	t.Helper()
	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, n := range names {
			b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(n.oid)
				b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
					if n.printable != "" {
						b.AddASN1(cryptobyte_asn1.PrintableString, func(b *cryptobyte.Builder) {
							b.AddBytes([]byte(n.printable))
						})
						return
					}
					b.AddASN1OctetString([]byte(n.octets))
				})
			})
		}
		for _, dns := range dnsNames {
			b.AddASN1(cryptobyte_asn1.Tag(2).ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(dns))
			})
		}
	})
	value, err := b.Bytes()
	if err != nil {
		t.Fatalf("build SAN extension: %v", err)
	}
	return pkix.Extension{Id: oidExtensionSubjectAltName, Value: value}
}

// bareCert returns an unsigned in-memory certificate carrying only the given
// subject attributes and extensions, for exercising pure functions without
// the decoder.
func bareCert(names []pkix.AttributeTypeAndValue, exts ...pkix.Extension) *x509.Certificate {
	return &x509.Certificate{
		Subject:    pkix.Name{Names: names},
		Extensions: exts,
	}
}

func cnAttr(cn string) pkix.AttributeTypeAndValue {
	return pkix.AttributeTypeAndValue{Type: oidCommonName, Value: cn}
}

func cnpjAttr(v any) pkix.AttributeTypeAndValue {
	return pkix.AttributeTypeAndValue{Type: OIDCNPJ, Value: v}
}

// buildPFX encodes leaf and cas into a PKCS#12 file with the modern cipher suite.
func buildPFX(t *testing.T, key *ecdsa.PrivateKey, leaf *x509.Certificate, cas []*x509.Certificate, password string) []byte {
	t.Helper()
	pfx, err := EncodePKCS12(key, leaf, cas, password)
	if err != nil {
		t.Fatalf("encode PKCS#12: %v", err)
	}
	return pfx
}

// buildBagsPFX writes certs and keys as plain PKCS#12 bags, with no Java
// trust attributes, the way OpenSSL and Windows export them.
func buildBagsPFX(t *testing.T, certs []*x509.Certificate, keys []*ecdsa.PrivateKey, password string) []byte {
	t.Helper()
	bags := &p12bags.Bags{}
	for _, c := range certs {
		bags.Certificates = append(bags.Certificates, p12bags.CertificateBag{Raw: c.Raw})
	}
	for _, k := range keys {
		der, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			t.Fatalf("marshal key: %v", err)
		}
		bags.PrivateKeys = append(bags.PrivateKeys, p12bags.PrivateKeyBag{Raw: der})
	}
	pfx, err := p12bags.Encode(bags, []byte(password))
	if err != nil {
		t.Fatalf("encode PKCS#12 bags: %v", err)
	}
	return pfx
}
