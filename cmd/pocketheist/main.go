package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pocketheist.org/internal/codename"
	"pocketheist.org/internal/config"
)

// version and commit are set at build time via -ldflags "-X main.version=x.y.z".
var (
	version = "dev"
	commit  = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "pocketheist",
		Short:         "Pocket Heist: plan office heists with your crew",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("POCKETHEIST_CONFIG"), "Path to a YAML config file")

	load := func() (config.Config, error) { return config.Load(configPath) }

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		&cobra.Command{
			Use:   "codename",
			Short: "Print a freshly generated codename",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), codename.Generate(nil))
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}
