package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/client"
	"github.com/jaupesca/remarketing-gateway/internal/model"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Write one message flow into many instances",
	Long: `Replace the chosen flow of every listed instance with the same blocks.
Only that flow changes; the other flow and all other fields are kept.

Blocks come from --file (a JSON array) followed by one text block per --text.
Use --clear to empty the flow.`,
	GroupID: "flows",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetInt64Slice("ids")
		if len(ids) == 0 {
			return fmt.Errorf("--ids is required")
		}
		typ, _ := cmd.Flags().GetString("type")
		if !cmd.Flags().Changed("type") {
			typ = string(effectiveChannel(activeRemote()))
		}
		ch, err := model.ParseChannel(typ)
		if err != nil {
			return err
		}

		blocks, err := broadcastBlocks(cmd)
		if err != nil {
			return err
		}

		res, err := rmkClient.Broadcast(cmd.Context(), &client.BroadcastRequest{
			InstanceIDs: ids,
			Messages:    blocks,
			Type:        ch,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "%s flow updated on %d of %d instances (%d blocks)\n",
			res.Channel, res.UpdatedCount, len(res.InstanceIDs), len(blocks))
		return nil
	},
}

func broadcastBlocks(cmd *cobra.Command) ([]model.MessageBlock, error) {
	path, _ := cmd.Flags().GetString("file")
	texts, _ := cmd.Flags().GetStringArray("text")
	clearFlow, _ := cmd.Flags().GetBool("clear")

	if clearFlow {
		if path != "" || len(texts) > 0 {
			return nil, fmt.Errorf("--clear cannot be combined with --file or --text")
		}
		return []model.MessageBlock{}, nil
	}
	if path == "" && len(texts) == 0 {
		return nil, fmt.Errorf("give --file, --text, or --clear")
	}

	blocks := []model.MessageBlock{}
	if path != "" {
		var r io.Reader = cmd.InOrStdin()
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&blocks); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	mode, _ := cmd.Flags().GetString("mode")
	sendBy, _ := cmd.Flags().GetString("send-by")
	for _, t := range texts {
		blocks = append(blocks, model.MessageBlock{
			Kind:    model.KindText,
			Mode:    model.Mode(mode),
			SendBy:  model.SendBy(sendBy),
			Message: t,
		})
	}

	var errs model.ValidationError
	errs.Errors = model.ValidateBlocks("messages", blocks)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func init() {
	broadcastCmd.Flags().Int64Slice("ids", nil, "target configuration ids (comma-separated)")
	broadcastCmd.Flags().StringP("type", "t", "", "flow to replace: cnpj or generic (default the active remote's, else cnpj)")
	broadcastCmd.Flags().StringP("file", "f", "", "read blocks as a JSON array from a file (- for stdin)")
	broadcastCmd.Flags().StringArray("text", nil, "append a text block (repeatable)")
	broadcastCmd.Flags().String("mode", string(model.ModeProduction), "mode of --text blocks (production or debug)")
	broadcastCmd.Flags().String("send-by", string(model.SendByMessagingAPI), "channel of --text blocks (evolutionapi or cw)")
	broadcastCmd.Flags().Bool("clear", false, "empty the flow")
}
