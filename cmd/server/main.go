package main

import (
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"container-dispatch/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Container job dispatch API",
		Long: `dispatch serves the job dispatch REST API. Jobs move through
accept, uplift, offload and done; dispatchers assign drivers and drivers
report progress and proof of delivery.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(userCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("Error: ")+err.Error())
		os.Exit(1)
	}
}
