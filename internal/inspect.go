package internal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sensiblebit/icpcert"
	"gopkg.in/yaml.v3"
)

// InspectResult holds the inspection details for a file.
type InspectResult struct {
	Path              string                    `json:"path" yaml:"path"`
	Source            string                    `json:"source" yaml:"source"`
	Entries           int                       `json:"entries" yaml:"entries"`
	SelectedEntry     int                       `json:"selectedEntry" yaml:"selectedEntry"`
	Status            icpcert.CertificateStatus `json:"status" yaml:"status"`
	CNPJStrategy      string                    `json:"cnpjStrategy,omitempty" yaml:"cnpjStrategy,omitempty"`
	CNPJChecksumValid *bool                     `json:"cnpjChecksumValid,omitempty" yaml:"cnpjChecksumValid,omitempty"`
	SHA256Fingerprint string                    `json:"sha256Fingerprint" yaml:"sha256Fingerprint"`
	EvaluatedAt       time.Time                 `json:"evaluatedAt" yaml:"evaluatedAt"`
	Certificate       icpcert.ParsedCertificate `json:"certificate" yaml:"certificate"`
}

// InspectFile reads a file and reports the entity certificate it holds.
// Bare certificates (DER, PEM, PKCS#7) are read directly; anything else is
// treated as a PKCS#12 or JKS container and opened with passwords in order.
func InspectFile(path string, passwords []string, now time.Time) (*InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	r, err := InspectData(data, passwords, now)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", path, err)
	}
	r.Path = path
	return r, nil
}

// InspectData is InspectFile over bytes already in memory.
func InspectData(data []byte, passwords []string, now time.Time) (*InspectResult, error) {
	entries, err := decodeEntries(data, passwords)
	if err != nil {
		return nil, err
	}
	entry, err := icpcert.SelectEntry(entries)
	if err != nil {
		return nil, err
	}

	parsed := icpcert.MapCertificate(entry.Cert, now)
	_, strategy, _ := icpcert.ExplainCNPJ(entry.Cert)

	r := &InspectResult{
		Source:            entry.Source.String(),
		Entries:           len(entries),
		SelectedEntry:     entry.Index,
		Status:            parsed.Status(),
		CNPJStrategy:      strategy,
		SHA256Fingerprint: icpcert.CertFingerprint(entry.Cert),
		EvaluatedAt:       now,
		Certificate:       parsed,
	}
	if cnpj := parsed.CNPJValue(); cnpj != "" {
		ok := icpcert.ValidCNPJChecksum(cnpj)
		r.CNPJChecksumValid = &ok
	}
	return r, nil
}

func decodeEntries(data []byte, passwords []string) ([]icpcert.Entry, error) {
	if certs, err := icpcert.ParseCertificatesAny(data); err == nil {
		return icpcert.CertificateEntries(certs), nil
	}

	entries, idx, err := icpcert.DecodeWithPasswords(data, passwords)
	if err != nil {
		return nil, err
	}
	slog.Debug("container opened", "password_attempt", idx+1, "entries", len(entries))
	return entries, nil
}

// FormatOptions controls FormatInspectResults.
type FormatOptions struct {
	// Format is "text", "json", or "yaml".
	Format string
	// Explain adds entry selection and CNPJ strategy details to text output.
	Explain bool
	// Color wraps the status in ANSI color in text output.
	Color bool
}

// FormatInspectResults formats inspection results as text, JSON, or YAML.
func FormatInspectResults(results []*InspectResult, opts FormatOptions) (string, error) {
	switch opts.Format {
	case "text", "":
		return formatInspectText(results, opts), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("marshaling YAML: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json, or yaml)", opts.Format)
	}
}

func formatInspectText(results []*InspectResult, opts FormatOptions) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		c := r.Certificate
		if r.Path != "" {
			fmt.Fprintf(&sb, "File:          %s\n", r.Path)
		}
		fmt.Fprintf(&sb, "Status:        %s (%s)\n", StatusLabel(r.Status, opts.Color), daysPhrase(c.Validity.DaysRemaining))
		fmt.Fprintf(&sb, "Subject:\n")
		fmt.Fprintf(&sb, "  CN:          %s\n", c.Subject.CN)
		fmt.Fprintf(&sb, "  O:           %s\n", c.Subject.O)
		if len(c.Subject.OU) > 0 {
			fmt.Fprintf(&sb, "  OU:          %s\n", strings.Join(c.Subject.OU, "; "))
		}
		if loc := joinNonEmpty(", ", c.Subject.L, c.Subject.ST, c.Subject.C); loc != "" {
			fmt.Fprintf(&sb, "  Location:    %s\n", loc)
		}
		fmt.Fprintf(&sb, "Issuer:        %s\n", joinNonEmpty(" / ", c.Issuer.CN, c.Issuer.O))
		fmt.Fprintf(&sb, "ICP-Brasil:    %s\n", yesNo(c.IsICPBrasil))
		fmt.Fprintf(&sb, "CNPJ:          %s\n", cnpjLine(r))
		fmt.Fprintf(&sb, "Serial:        %s\n", c.SerialNumber)
		fmt.Fprintf(&sb, "Not Before:    %s\n", c.Validity.NotBefore.UTC().Format(time.RFC3339))
		fmt.Fprintf(&sb, "Not After:     %s\n", c.Validity.NotAfter.UTC().Format(time.RFC3339))
		fmt.Fprintf(&sb, "SHA-1:         %s\n", colonFingerprint(c.Fingerprint))
		if r.SHA256Fingerprint != "" {
			fmt.Fprintf(&sb, "SHA-256:       %s\n", colonFingerprint(r.SHA256Fingerprint))
		}

		if opts.Explain {
			fmt.Fprintf(&sb, "Explain:\n")
			fmt.Fprintf(&sb, "  Container:   %s, %d certificate(s)\n", r.Source, r.Entries)
			fmt.Fprintf(&sb, "  Selected:    entry %d\n", r.SelectedEntry)
			strategy := r.CNPJStrategy
			if strategy == "" {
				strategy = "none matched"
			}
			fmt.Fprintf(&sb, "  CNPJ via:    %s (order: %s)\n", strategy, strings.Join(icpcert.CNPJStrategies(), ", "))
		}
	}
	return sb.String()
}

func cnpjLine(r *InspectResult) string {
	cnpj := r.Certificate.CNPJValue()
	if cnpj == "" {
		return "not found"
	}
	line := icpcert.FormatCNPJ(cnpj)
	if r.CNPJChecksumValid != nil && !*r.CNPJChecksumValid {
		line += " (check digits do not match)"
	}
	return line
}

func daysPhrase(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("expired %d day(s) ago", -days)
	case days == 1:
		return "1 day remaining"
	default:
		return fmt.Sprintf("%d days remaining", days)
	}
}

func colonFingerprint(fp string) string {
	b, err := hex.DecodeString(fp)
	if err != nil {
		return fp
	}
	return icpcert.ColonHex(b)
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
