package commands

import (
	"github.com/spf13/cobra"

	"github.com/mohmed402/wasel/internal/browser"
)

func init() {
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install-browser",
	Short: "Downloads the Chromium build used for extraction.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return browser.Install()
	},
}
