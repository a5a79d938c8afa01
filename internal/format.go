package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sensiblebit/icpcert"
)

// SummaryAnnotation returns a parenthetical annotation like
// " (2 expired, 1 expiring soon)" for non-zero counts, or an empty string if
// all are zero.
func SummaryAnnotation(expired, expiring, noCNPJ int) string {
	var parts []string
	if expired > 0 {
		parts = append(parts, fmt.Sprintf("%d expired", expired))
	}
	if expiring > 0 {
		parts = append(parts, fmt.Sprintf("%d expiring soon", expiring))
	}
	if noCNPJ > 0 {
		parts = append(parts, fmt.Sprintf("%d without CNPJ", noCNPJ))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// ColorEnabled reports whether f is an interactive terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// StatusLabel renders a certificate status, wrapped in ANSI color when color
// is set.
func StatusLabel(status icpcert.CertificateStatus, color bool) string {
	if !color {
		return string(status)
	}
	var code string
	switch status {
	case icpcert.StatusValid:
		code = ansiGreen
	case icpcert.StatusExpiringSoon:
		code = ansiYellow
	default:
		code = ansiRed
	}
	return code + string(status) + ansiReset
}
