package icpcert

import (
	"crypto/x509"
	"encoding/asn1"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var oidExtensionSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// otherName is a SAN GeneralName of the otherName choice. Value holds the
// content octets of the value inside the explicit [0] wrapper, whatever its
// universal type (ICP-Brasil issuers use OCTET STRING, PrintableString, or
// UTF8String interchangeably).
type otherName struct {
	TypeID asn1.ObjectIdentifier
	Value  []byte
}

var (
	otherNameTag      = cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()
	otherNameValueTag = cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()
)

// sanOtherNames returns the otherName entries of the certificate's SAN
// extension in encounter order. Malformed names are skipped; a malformed
// extension yields whatever was read before the damage.
//
//	GeneralNames ::= SEQUENCE SIZE (1..MAX) OF GeneralName
//	OtherName ::= SEQUENCE {
//	     type-id    OBJECT IDENTIFIER,
//	     value      [0] EXPLICIT ANY DEFINED BY type-id }
func sanOtherNames(cert *x509.Certificate) []otherName {
	var names []otherName
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidExtensionSubjectAltName) {
			continue
		}
		input := cryptobyte.String(ext.Value)
		var seq cryptobyte.String
		if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
			continue
		}
		for !seq.Empty() {
			var gn cryptobyte.String
			var tag cryptobyte_asn1.Tag
			if !seq.ReadAnyASN1(&gn, &tag) {
				break
			}
			if tag != otherNameTag {
				continue
			}
			if on, ok := parseOtherName(gn); ok {
				names = append(names, on)
			}
		}
	}
	return names
}

func parseOtherName(gn cryptobyte.String) (otherName, bool) {
	var on otherName
	if !gn.ReadASN1ObjectIdentifier(&on.TypeID) {
		return otherName{}, false
	}
	var explicit cryptobyte.String
	if !gn.ReadASN1(&explicit, otherNameValueTag) {
		return otherName{}, false
	}
	var value cryptobyte.String
	var valueTag cryptobyte_asn1.Tag
	if !explicit.ReadAnyASN1(&value, &valueTag) {
		return otherName{}, false
	}
	on.Value = []byte(value)
	return on, true
}
