package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/joingroup/internal/opener"
)

var openCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Open a document with the handler registered for the joingroup URL scheme",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

func init() {
	openCmd.Flags().String("mode", string(opener.ModeView), "Open mode (view, edit)")
	openCmd.Flags().Bool("print", false, "Print the document URL instead of opening it")
}

func runOpen(cmd *cobra.Command, args []string) error {
	rawMode, _ := cmd.Flags().GetString("mode")
	mode, err := opener.ParseMode(rawMode)
	if err != nil {
		return err
	}

	documents := opener.NewDocumentOpener(opener.NewBrowserOpener(opener.DefaultScheme), opener.DefaultScheme)
	doc := opener.Document{ID: args[0]}

	if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
		fmt.Fprintln(cmd.OutOrStdout(), documents.URL(doc, mode))
		return nil
	}

	if err := documents.Open(cmd.Context(), doc, mode); err != nil {
		if errors.Is(err, opener.ErrCannotOpen) {
			slog.Error("No application is registered for the document URL", "id", doc.ID)
		}
		return err
	}
	slog.Info("Opened document", "id", doc.ID, "mode", string(mode))
	return nil
}
