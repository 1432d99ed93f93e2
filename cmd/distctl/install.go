package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vaultforge/distengine/api"
	"github.com/vaultforge/distengine/engine"
	"github.com/vaultforge/distengine/progress"
	"github.com/vaultforge/distengine/store"
)

func newInstallCmd() *cobra.Command {
	var (
		version    string
		targetOS   string
		basePath   string
		path       string
		workers    int
		maxMemory  int64
		infoOnly   bool
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "install <slug>",
		Short: "Install a build by product slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			slug := args[0]

			if targetOS == "" {
				targetOS = "win"
			}
			if version == "" {
				return fmt.Errorf("--version is required")
			}

			installPath := path
			if installPath == "" {
				if basePath != "" {
					installPath = filepath.Join(basePath, slug)
				} else {
					installPath = filepath.Join(defaultInstallBasePath(), slug)
				}
			}

			if !infoOnly {
				if existing, err := store.GetInstallInfo(slug); err == nil && existing != nil {
					if existing.Version == version && existing.OS == targetOS {
						fmt.Printf("%s is already installed at %s (v%s)\n", slug, existing.InstallPath, existing.Version)
						return nil
					}
				}
			}

			e := newEngine()
			build := api.BuildDescriptor{ProductSlug: slug, Version: version, OS: targetOS}

			opts := engine.Options{
				Pipeline: pipelineOptions(workers, maxMemory, skipVerify),
				InfoOnly: infoOnly,
			}

			estimate, result, err := e.Install(cmd.Context(), build, installPath, opts)
			if err != nil {
				return fmt.Errorf("install failed: %w", err)
			}

			if infoOnly {
				fmt.Printf("Download size: %s\n", progress.FormatBytes(estimate.DownloadBytes))
				return nil
			}

			fmt.Printf("Installed %s v%s at %s (%d files)\n", slug, version, result.InstallPath, len(result.Records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&version, "version", "v", "", "build version to install")
	cmd.Flags().StringVar(&targetOS, "os", "", "target OS (default: win)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "base install path (slug subdirectory created)")
	cmd.Flags().StringVar(&path, "path", "", "exact install path")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel download workers (default from config)")
	cmd.Flags().Int64Var(&maxMemory, "max-memory", 0, "max chunk-buffering memory in bytes (default from config)")
	cmd.Flags().BoolVarP(&infoOnly, "info", "i", false, "show download size without installing")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip per-chunk SHA verification")

	return cmd
}

func newUninstallCmd() *cobra.Command {
	var keepFiles bool

	cmd := &cobra.Command{
		Use:   "uninstall <slug>",
		Short: "Remove an installed build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			slug := args[0]

			info, err := store.GetInstallInfo(slug)
			if err != nil {
				return fmt.Errorf("check installed: %w", err)
			}
			if info == nil {
				return fmt.Errorf("%s is not installed", slug)
			}

			if !keepFiles {
				if err := os.RemoveAll(info.InstallPath); err != nil {
					return fmt.Errorf("remove files: %w", err)
				}
			}

			if err := store.RemoveInstallInfo(slug); err != nil {
				return fmt.Errorf("update installed index: %w", err)
			}

			fmt.Printf("Uninstalled %s\n", slug)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "keep files on disk, only drop the install record")
	return cmd
}
