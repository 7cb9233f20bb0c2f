package cli

import (
	"github.com/spf13/cobra"

	"careline/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a terminal chat session against a running careline server",
	RunE:  runChat,
}

var chatServerURL string

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "http://127.0.0.1:8080", "base URL of the careline server")
}

func runChat(cmd *cobra.Command, _ []string) error {
	return tui.Run(cmd.Context(), chatServerURL)
}
