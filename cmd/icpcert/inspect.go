package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sensiblebit/icpcert"
	"github.com/sensiblebit/icpcert/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat  string
	inspectExplain bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Display the identity, validity and CNPJ of certificates",
	Long:  "Open each file (PKCS#12, JKS or a bare certificate), select the certificate that identifies the holder and print its subject, issuer, validity and CNPJ.",
	Example: `  icpcert inspect empresa.pfx -p senha123
  icpcert inspect *.p12 --password-file senhas.txt --format json
  icpcert inspect empresa.pfx --explain`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: certificateFileCompletion,
	RunE:              runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text, json or yaml")
	inspectCmd.Flags().BoolVar(&inspectExplain, "explain", false, "Show which entry was selected and how the CNPJ was found")
	registerCompletion(inspectCmd, completionInput{"format", fixedCompletion("text", "json", "yaml")})
}

func runInspect(cmd *cobra.Command, args []string) error {
	passwords, err := candidatePasswords()
	if err != nil {
		return err
	}

	now := time.Now()
	var (
		results []*internal.InspectResult
		failed  int
	)
	for _, path := range args {
		r, err := internal.InspectFile(path, passwords, now)
		if err != nil {
			failed++
			if errors.Is(err, icpcert.ErrBadPasswordOrCorrupt) {
				slog.Error("could not open container, try --passwords or --password-file", "path", path, "error", err)
			} else {
				slog.Error("inspecting file", "path", path, "error", err)
			}
			continue
		}
		results = append(results, r)
	}

	if len(results) > 0 {
		output, err := internal.FormatInspectResults(results, internal.FormatOptions{
			Format:  inspectFormat,
			Explain: inspectExplain,
			Color:   internal.ColorEnabled(os.Stdout),
		})
		if err != nil {
			return err
		}
		fmt.Print(output)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be inspected", failed, len(args))
	}
	return nil
}
