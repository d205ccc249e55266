// Package main implements the bootplane-agent, the stand-alone tool that
// pulls a modified boot disk off the control plane and mounts it on the
// local host for post-processing.
//
// Usage:
//
//	bootplane-agent list               # Show modified logical units
//	bootplane-agent mount              # Mount the first modified disk at /mnt
//	bootplane-agent mount --mount-point /srv/inspect
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nls90/bootplane/pkg/config"
)

// Build information (set via ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		apiURL     string
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:   "bootplane-agent",
		Short: "Mount modified boot disks from the bootplane control plane",
		Long: `bootplane-agent polls the bootplane API for logical units left in the
modified state after booting, resolves their device path and mounts them
locally so an operator can inspect or harvest the changes.

Connection to the control plane can be configured via:
  - Flag: --api-url
  - Config file: --config (api_base_url key)`,
		Version: version + " (" + commit + ")",
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Base URL of the bootplane API")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(newListCmd(&apiURL, &configPath))
	rootCmd.AddCommand(newMountCmd(&apiURL, &configPath))

	return rootCmd
}

// loadConfig merges the config file with the flag override.
func loadConfig(apiURL, configPath *string) (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	return cfg, nil
}
