package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/icpcert"
	"gopkg.in/yaml.v3"
)

// ClientConfig is one client of the office whose e-CNPJ is expected in the
// scanned tree.
type ClientConfig struct {
	Name      string   `yaml:"name"`
	CNPJ      string   `yaml:"cnpj"`
	Passwords []string `yaml:"passwords,omitempty"`
}

// ClientsYAML is the full roster file with shared defaults.
type ClientsYAML struct {
	DefaultPasswords []string       `yaml:"defaultPasswords,omitempty"`
	Clients          []ClientConfig `yaml:"clients"`
}

// LoadClientConfigs loads a client roster from a YAML file. Both the
// {defaultPasswords, clients} form and a bare list of clients are accepted.
// CNPJs are normalized to 14 digits.
func LoadClientConfigs(path string) ([]ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client roster %s: %w", path, err)
	}

	var clients []ClientConfig
	var roster ClientsYAML
	if err := yaml.Unmarshal(data, &roster); err == nil && len(roster.Clients) > 0 {
		clients = roster.Clients
		for i := range clients {
			if len(clients[i].Passwords) == 0 && len(roster.DefaultPasswords) > 0 {
				clients[i].Passwords = append([]string(nil), roster.DefaultPasswords...)
			}
		}
	} else if err := yaml.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("parsing client roster %s: %w", path, err)
	}

	for i := range clients {
		cnpj, ok := icpcert.NormalizeCNPJ(clients[i].CNPJ)
		if !ok {
			return nil, fmt.Errorf("client %q: CNPJ %q must have 14 digits", clients[i].Name, clients[i].CNPJ)
		}
		clients[i].CNPJ = cnpj
	}
	return clients, nil
}

// ClientPasswords returns every password named in the roster, in order.
func ClientPasswords(clients []ClientConfig) []string {
	var out []string
	for _, c := range clients {
		out = append(out, c.Passwords...)
	}
	return out
}

// ClientCoverage reports the newest catalogued certificate of a client.
// Status is "MISSING" when no certificate carries the client's CNPJ.
type ClientCoverage struct {
	Name     string `json:"name" yaml:"name"`
	CNPJ     string `json:"cnpj" yaml:"cnpj"`
	Status   string `json:"status" yaml:"status"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	NotAfter string `json:"not_after,omitempty" yaml:"not_after,omitempty"`
}

// CoverageMissing is the status of a client with no catalogued certificate.
const CoverageMissing = "MISSING"

// CheckClientCoverage looks up each client's newest certificate in db.
func CheckClientCoverage(db *DB, clients []ClientConfig) ([]ClientCoverage, error) {
	out := make([]ClientCoverage, 0, len(clients))
	for _, c := range clients {
		cov := ClientCoverage{Name: c.Name, CNPJ: c.CNPJ, Status: CoverageMissing}
		certs, err := db.GetCertsByCNPJ(c.CNPJ)
		if err != nil {
			return nil, err
		}
		if len(certs) > 0 {
			cov.Status = certs[0].Status
			cov.Path = certs[0].Path
			cov.NotAfter = certs[0].NotAfter.UTC().Format("2006-01-02")
		}
		out = append(out, cov)
	}
	return out, nil
}

// FormatClientCoverage renders coverage as one line per client.
func FormatClientCoverage(coverage []ClientCoverage, color bool) string {
	var sb strings.Builder
	for _, c := range coverage {
		status := c.Status
		if c.Status == CoverageMissing {
			if color {
				status = ansiRed + status + ansiReset
			}
		} else {
			status = StatusLabel(icpcert.CertificateStatus(c.Status), color)
		}
		fmt.Fprintf(&sb, "%-18s  %-13s  %s", icpcert.FormatCNPJ(c.CNPJ), status, c.Name)
		if c.Path != "" {
			fmt.Fprintf(&sb, "  (%s, until %s)", c.Path, c.NotAfter)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
