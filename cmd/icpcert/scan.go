package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sensiblebit/icpcert/internal"
	"github.com/spf13/cobra"
)

var (
	dbPath         string
	scanClients    string
	scanExtensions []string
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan and catalog certificate containers",
	Long:  "Walk a file or directory (including zip and tar archives), open every certificate container with the candidate passwords and print a summary of what was found. Use --db to keep the catalog between runs.",
	Example: `  icpcert scan ./clientes -p senha123
  icpcert scan ./clientes --db catalogo.db --clients clientes.yaml`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: directoryCompletion,
	RunE:              runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&dbPath, "db", "d", "", "SQLite catalog path, loaded before and saved after the scan (default: in-memory)")
	scanCmd.Flags().StringVarP(&scanClients, "clients", "c", "", "Client roster YAML; adds its passwords and reports coverage per CNPJ")
	scanCmd.Flags().StringSliceVar(&scanExtensions, "ext", internal.DefaultScanExtensions, "File extensions opened during a directory walk")

	registerCompletion(scanCmd, completionInput{"db", extensionCompletion("db", "sqlite")})
	registerCompletion(scanCmd, completionInput{"clients", extensionCompletion("yaml", "yml")})
}

func runScan(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	var clients []internal.ClientConfig
	if scanClients != "" {
		var err error
		clients, err = internal.LoadClientConfigs(scanClients)
		if err != nil {
			return fmt.Errorf("loading client roster: %w", err)
		}
	}

	passwords, err := candidatePasswords(internal.ClientPasswords(clients)...)
	if err != nil {
		return err
	}

	db, err := internal.NewDB()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			if err := db.LoadFromDisk(dbPath); err != nil {
				return err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking catalog %s: %w", dbPath, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &internal.ScanConfig{
		InputPath:  inputPath,
		Passwords:  passwords,
		DB:         db,
		Extensions: internal.NormalizeExtensions(scanExtensions),
	}
	n, err := internal.ScanPath(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Debug("scan finished", "containers", n)

	summary, err := db.GetScanSummary()
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}
	fmt.Printf("\nFound %d certificate(s)%s\n", summary.Total,
		internal.SummaryAnnotation(summary.Expired, summary.ExpiringSoon, summary.WithoutCNPJ))
	if summary.Total > 0 {
		fmt.Printf("  Valid:          %d\n", summary.Valid)
		fmt.Printf("  Expiring soon:  %d\n", summary.ExpiringSoon)
		fmt.Printf("  Expired:        %d\n", summary.Expired)
		fmt.Printf("  Not yet valid:  %d\n", summary.NotYetValid)
		fmt.Printf("  ICP-Brasil:     %d\n", summary.ICPBrasil)
	}
	if summary.Failed > 0 {
		fmt.Printf("  Unreadable:     %d (see --log-level debug or the scan_errors table)\n", summary.Failed)
	}

	if len(clients) > 0 {
		coverage, err := internal.CheckClientCoverage(db, clients)
		if err != nil {
			return fmt.Errorf("checking client coverage: %w", err)
		}
		fmt.Printf("\nClients:\n%s", internal.FormatClientCoverage(coverage, internal.ColorEnabled(os.Stdout)))
	}

	if err := db.DumpDB(); err != nil {
		return fmt.Errorf("dumping database: %w", err)
	}
	if dbPath != "" {
		// VACUUM INTO refuses an existing file.
		tmp := dbPath + ".tmp"
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale %s: %w", tmp, err)
		}
		if err := db.SaveToDisk(tmp); err != nil {
			return err
		}
		if err := os.Rename(tmp, dbPath); err != nil {
			return fmt.Errorf("replacing catalog %s: %w", dbPath, err)
		}
	}
	return nil
}
