package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/sensiblebit/icpcert"
)

// VerifyInput holds the inspected certificate and the checks to run on it.
type VerifyInput struct {
	Result           *InspectResult
	ExpiryDuration   time.Duration
	RequireCNPJ      bool
	RequireICPBrasil bool
	CheckCNPJDigits  bool
}

// VerifyResult holds the results of certificate verification checks.
type VerifyResult struct {
	Path       string                    `json:"path" yaml:"path"`
	Subject    string                    `json:"subject" yaml:"subject"`
	NotAfter   string                    `json:"not_after" yaml:"not_after"`
	Days       int                       `json:"days_remaining" yaml:"days_remaining"`
	Status     icpcert.CertificateStatus `json:"status" yaml:"status"`
	CNPJ       string                    `json:"cnpj,omitempty" yaml:"cnpj,omitempty"`
	ICPBrasil  bool                      `json:"icp_brasil" yaml:"icp_brasil"`
	Expiry     *bool                     `json:"expires_within,omitempty" yaml:"expires_within,omitempty"`
	ExpiryInfo string                    `json:"expiry_info,omitempty" yaml:"expiry_info,omitempty"`
	Errors     []string                  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// VerifyCert runs the requested checks. Time validity is always checked;
// the rest only when enabled in input.
func VerifyCert(input *VerifyInput) *VerifyResult {
	r := input.Result
	c := r.Certificate

	result := &VerifyResult{
		Path:      r.Path,
		Subject:   c.Subject.CN,
		NotAfter:  c.Validity.NotAfter.UTC().Format(time.RFC3339),
		Days:      c.Validity.DaysRemaining,
		Status:    r.Status,
		CNPJ:      c.CNPJValue(),
		ICPBrasil: c.IsICPBrasil,
	}

	switch r.Status {
	case icpcert.StatusExpired:
		result.Errors = append(result.Errors, fmt.Sprintf("certificate expired (not after: %s)", result.NotAfter))
	case icpcert.StatusNotYetValid:
		result.Errors = append(result.Errors, fmt.Sprintf("certificate not yet valid (not before: %s)", c.Validity.NotBefore.UTC().Format(time.RFC3339)))
	}

	if input.ExpiryDuration > 0 && c.Validity.IsValid {
		expires := !r.EvaluatedAt.Add(input.ExpiryDuration).Before(c.Validity.NotAfter)
		result.Expiry = &expires
		if expires {
			result.ExpiryInfo = fmt.Sprintf("certificate expires within %s (not after: %s)", input.ExpiryDuration, result.NotAfter)
			result.Errors = append(result.Errors, result.ExpiryInfo)
		} else {
			result.ExpiryInfo = fmt.Sprintf("certificate does not expire within %s", input.ExpiryDuration)
		}
	}

	if input.RequireCNPJ && result.CNPJ == "" {
		result.Errors = append(result.Errors, "no CNPJ found in certificate")
	}
	if input.CheckCNPJDigits && result.CNPJ != "" && !icpcert.ValidCNPJChecksum(result.CNPJ) {
		result.Errors = append(result.Errors, fmt.Sprintf("CNPJ %s has invalid check digits", icpcert.FormatCNPJ(result.CNPJ)))
	}
	if input.RequireICPBrasil && !result.ICPBrasil {
		result.Errors = append(result.Errors, fmt.Sprintf("issuer %q is not an ICP-Brasil authority", c.Issuer.O))
	}

	return result
}

// FormatVerifyResult formats a verify result as human-readable text.
func FormatVerifyResult(r *VerifyResult, color bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Certificate: %s\n", r.Subject)
	fmt.Fprintf(&sb, "     Status: %s\n", StatusLabel(r.Status, color))
	fmt.Fprintf(&sb, "  Not After: %s (%d days)\n", r.NotAfter, r.Days)
	if r.CNPJ != "" {
		fmt.Fprintf(&sb, "       CNPJ: %s\n", icpcert.FormatCNPJ(r.CNPJ))
	} else {
		sb.WriteString("       CNPJ: not found\n")
	}
	fmt.Fprintf(&sb, " ICP-Brasil: %s\n", yesNo(r.ICPBrasil))

	if r.Expiry != nil {
		fmt.Fprintf(&sb, "\n  Expiry: %s\n", r.ExpiryInfo)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\nVerification FAILED (%d error(s))\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
	} else {
		sb.WriteString("\nVerification OK\n")
	}

	return sb.String()
}
