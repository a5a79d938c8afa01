package main

import (
	"fmt"

	"github.com/sensiblebit/icpcert/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	logLevel     string
	logFormat    string
	passwordList []string
	passwordFile string
)

var rootCmd = &cobra.Command{
	Use:   "icpcert",
	Short: "ICP-Brasil e-CNPJ certificate tool",
	Long:  "Open ICP-Brasil A1 certificate containers (PKCS#12, JKS), report holder identity, validity and CNPJ, and catalog whole directories of them.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		internal.SetupLogger(logLevel, logFormat)
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	addPasswordFlags(pf)

	registerCompletion(rootCmd, completionInput{"log-level", fixedCompletion("debug", "info", "warn", "error")})
	registerCompletion(rootCmd, completionInput{"log-format", fixedCompletion("text", "json")})
	registerCompletion(rootCmd, completionInput{"password-file", extensionCompletion("txt")})

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(verifyCmd)
}

func addPasswordFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&passwordList, "passwords", "p", nil, "Comma-separated container passwords, tried after the defaults")
	fs.StringVar(&passwordFile, "password-file", "", "File containing passwords, one per line")
}

// candidatePasswords returns the ordered password list for this run, with
// any extra passwords appended after the flag values.
func candidatePasswords(extra ...string) ([]string, error) {
	passwords, err := internal.ProcessPasswords(append(append([]string(nil), passwordList...), extra...), passwordFile)
	if err != nil {
		return nil, fmt.Errorf("loading passwords: %w", err)
	}
	return passwords, nil
}
