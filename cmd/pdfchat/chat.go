package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pdfchat/internal/client"
	"pdfchat/internal/tui"
)

var (
	chatServer string
	chatUpload string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a terminal chat against a running server",
	Long:  `Starts an interactive chat. Type a question and press Enter, or use /upload <path> to send a document.`,
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServer, "server", "http://localhost:8000", "Base URL of the pdfchat server")
	chatCmd.Flags().StringVar(&chatUpload, "upload", "", "Document to upload before the chat starts")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	c := client.New(chatServer, 5*time.Minute)
	if chatUpload != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		msg, err := c.UploadDocument(ctx, chatUpload)
		if err != nil {
			return fmt.Errorf("upload %s: %w", chatUpload, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	_, err := tea.NewProgram(tui.New(c, chatServer), tea.WithAltScreen()).Run()
	return err
}
