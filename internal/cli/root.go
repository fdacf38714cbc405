// Package cli holds the radarlcd commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var flagEnvFile string

var rootCmd = &cobra.Command{
	Use:   "radarlcd",
	Short: "Rain radar loop for a small LCD",
	Long: `radarlcd keeps the latest rain radar frames cached on disk and shows them on a
small display. A button press plays the cached frames as a sequence.`,
	SilenceUsage: true,
	RunE:         runController,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file read before the environment")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(resolveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("radarlcd %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
