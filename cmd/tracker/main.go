// Command tracker runs the email tracking service and its maintenance commands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCommand = &cobra.Command{
	Use:          "tracker",
	Short:        "Track delivery, opens, clicks, bounces and complaints of outbound email",
	SilenceUsage: true,
}

func init() {
	rootCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
