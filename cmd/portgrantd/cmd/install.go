package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/portgrant/portgrantd/internal/packaging"
)

var installBackend string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install portgrantd as a systemd service",
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installBackend, "backend", "", "datapath backend for the generated config (manager or nftables)")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := packaging.InstallConfig{
		DatapathBackend: installBackend,
	}

	installer := packaging.NewInstaller(cfg, packaging.NewSystemdController(), packaging.NewRootChecker(), logger)

	if err := installer.Install(); err != nil {
		return fmt.Errorf("portgrantd install: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "portgrantd installed; service enabled and started")
	return nil
}
