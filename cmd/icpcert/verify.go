package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sensiblebit/icpcert/internal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	verifyExpiry      string
	verifyRequireCNPJ bool
	verifyRequireICP  bool
	verifyCheckDigits bool
	verifyFormat      string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check a certificate for expiry and CNPJ requirements",
	Long:  "Open a certificate container and fail when the certificate is out of its validity window, expires within a given duration, or does not meet the CNPJ and ICP-Brasil requirements.",
	Example: `  icpcert verify empresa.pfx -p senha123 --expiry 30d
  icpcert verify empresa.pfx --require-cnpj --check-digits --require-icp-brasil`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: certificateFileCompletion,
	RunE:              runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyExpiry, "expiry", "e", "", "Fail if the certificate expires within duration (e.g., 30d, 720h)")
	verifyCmd.Flags().BoolVar(&verifyRequireCNPJ, "require-cnpj", false, "Fail if no CNPJ can be extracted")
	verifyCmd.Flags().BoolVar(&verifyRequireICP, "require-icp-brasil", false, "Fail if the issuer is not an ICP-Brasil authority")
	verifyCmd.Flags().BoolVar(&verifyCheckDigits, "check-digits", false, "Fail if the CNPJ check digits are invalid")
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "Output format: text, json or yaml")
	registerCompletion(verifyCmd, completionInput{"format", fixedCompletion("text", "json", "yaml")})
	registerCompletion(verifyCmd, completionInput{"expiry", fixedCompletion("7d", "30d", "60d", "90d")})
}

// parseDuration extends time.ParseDuration to support a "d" suffix for days.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		trimmed := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func runVerify(_ *cobra.Command, args []string) error {
	var expiryDuration time.Duration
	if verifyExpiry != "" {
		var err error
		expiryDuration, err = parseDuration(verifyExpiry)
		if err != nil {
			return fmt.Errorf("invalid --expiry value: %w", err)
		}
	}

	passwords, err := candidatePasswords()
	if err != nil {
		return err
	}

	inspected, err := internal.InspectFile(args[0], passwords, time.Now())
	if err != nil {
		return err
	}

	result := internal.VerifyCert(&internal.VerifyInput{
		Result:           inspected,
		ExpiryDuration:   expiryDuration,
		RequireCNPJ:      verifyRequireCNPJ,
		RequireICPBrasil: verifyRequireICP,
		CheckCNPJDigits:  verifyCheckDigits,
	})

	switch verifyFormat {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		fmt.Print(string(data))
	case "text", "":
		fmt.Print(internal.FormatVerifyResult(result, internal.ColorEnabled(os.Stdout)))
	default:
		return fmt.Errorf("unsupported output format %q (use text, json or yaml)", verifyFormat)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("verification failed")
	}
	return nil
}
