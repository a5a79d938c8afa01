package icpcert

import (
	"errors"
	"time"
)

// ParseCertificate decodes a PKCS#12 (or JKS) container with password,
// selects the entity certificate, and maps it as of the current time.
// Errors are always *DecodeError.
func ParseCertificate(data []byte, password string) (ParsedCertificate, error) {
	return ParseCertificateAt(data, password, time.Now())
}

// ParseCertificateAt is ParseCertificate evaluated at now.
func ParseCertificateAt(data []byte, password string, now time.Time) (ParsedCertificate, error) {
	entries, err := DecodeContainer(data, password)
	if err != nil {
		return ParsedCertificate{}, err
	}
	entry, err := SelectEntry(entries)
	if err != nil {
		return ParsedCertificate{}, err
	}
	return MapCertificate(entry.Cert, now), nil
}

// DecodeWithPasswords tries each password in order and returns the entries
// of the first one that opens the container, with that password's index. A
// NoCertificateFound result stops the search since the password was
// accepted. With no passwords it returns BadPasswordOrCorrupt.
func DecodeWithPasswords(data []byte, passwords []string) ([]Entry, int, error) {
	lastErr := error(ErrBadPasswordOrCorrupt)
	for i, pw := range passwords {
		entries, err := DecodeContainer(data, pw)
		if err == nil {
			return entries, i, nil
		}
		if errors.Is(err, ErrNoCertificateFound) {
			return nil, -1, err
		}
		lastErr = err
	}
	return nil, -1, lastErr
}

// ParseWithPasswords is ParseCertificateAt over the first password in
// passwords that opens the container.
func ParseWithPasswords(data []byte, passwords []string, now time.Time) (ParsedCertificate, error) {
	entries, _, err := DecodeWithPasswords(data, passwords)
	if err != nil {
		return ParsedCertificate{}, err
	}
	entry, err := SelectEntry(entries)
	if err != nil {
		return ParsedCertificate{}, err
	}
	return MapCertificate(entry.Cert, now), nil
}
