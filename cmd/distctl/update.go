package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultforge/distengine/api"
	"github.com/vaultforge/distengine/engine"
	"github.com/vaultforge/distengine/progress"
	"github.com/vaultforge/distengine/store"
)

func newUpdateCmd() *cobra.Command {
	var (
		version    string
		workers    int
		maxMemory  int64
		infoOnly   bool
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "update <slug>",
		Short: "Update an installed build to a newer version",
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
			if version == "" {
				return fmt.Errorf("--version is required")
			}
			if version == installed.Version {
				fmt.Printf("%s is already at version %s\n", slug, version)
				return nil
			}

			e := newEngine()
			build := api.BuildDescriptor{ProductSlug: slug, Version: version, OS: installed.OS}

			opts := engine.Options{
				Pipeline: pipelineOptions(workers, maxMemory, skipVerify),
				InfoOnly: infoOnly,
			}

			estimate, result, err := e.Update(cmd.Context(), build, installed.Version, installed.InstallPath, opts)
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}

			if infoOnly {
				fmt.Printf("Download size: %s, disk delta: %d bytes\n", progress.FormatBytes(estimate.DownloadBytes), estimate.DiskDelta)
				return nil
			}

			fmt.Printf("Updated %s to v%s at %s (%d files)\n", slug, version, result.InstallPath, len(result.Records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&version, "version", "v", "", "target version to update to")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel download workers (default from config)")
	cmd.Flags().Int64Var(&maxMemory, "max-memory", 0, "max chunk-buffering memory in bytes (default from config)")
	cmd.Flags().BoolVarP(&infoOnly, "info", "i", false, "show update size without updating")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip per-chunk SHA verification")

	return cmd
}
