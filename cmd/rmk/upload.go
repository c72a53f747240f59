package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <image|video|audio|document> <file>",
	Short: "Upload a media file and print its public URL",
	Long: `Upload a media file for use in an attachment block. The file extension
must be allowed for the given kind.`,
	GroupID: "flows",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := model.BlockKind(strings.ToLower(args[0]))
		if !kind.IsAttachment() {
			return fmt.Errorf("kind must be image, video, audio, or document")
		}
		path := args[1]
		if !model.ExtensionAllowed(kind, filepath.Ext(path)) {
			return fmt.Errorf("%s files must end in one of: %s", kind, strings.Join(model.AllowedExtensions(kind), ", "))
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := rmkClient.Upload(cmd.Context(), kind, path, f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintln(out, res.URL)
		return nil
	},
}
