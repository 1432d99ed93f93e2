package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultforge/distengine/store"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <slug>",
		Short: "Re-hash an installed build's files against its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			slug := args[0]

			installed, err := store.GetInstallInfo(slug)
			if err != nil {
				return fmt.Errorf("check installed: %w", err)
			}
			if installed == nil {
				return fmt.Errorf("%s is not installed", slug)
			}

			e := newEngine()
			valid, results, err := e.Verify(cmd.Context(), slug, installed.Version, installed.InstallPath)
			if err != nil {
				return fmt.Errorf("verify failed: %w", err)
			}

			fmt.Printf("Verified %d files\n", len(results))
			if valid {
				fmt.Printf("%s passed verification.\n", slug)
				return nil
			}

			for _, r := range results {
				if !r.Valid {
					fmt.Printf("  %s: %v\n", r.FileName, r.Error)
				}
			}
			return fmt.Errorf("%s has corrupted or missing files", slug)
		},
	}

	return cmd
}
