package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/agent"
)

var (
	searchThreadID string
	searchEvents   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one search query and print the response as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := args[0]

		env, err := initAgent(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if searchEvents {
			// Print the event stream as JSON lines, as an SSE client
			// would receive it.
			enc.SetIndent("", "")
			for ev := range env.Agent.Stream(ctx, query, searchThreadID) {
				if err := enc.Encode(ev); err != nil {
					return eris.Wrap(err, "encode event")
				}
				if ev.Type == agent.EventError {
					return eris.New(ev.Message)
				}
			}
			return nil
		}

		resp, err := env.Agent.Search(ctx, query, searchThreadID)
		if err != nil {
			return eris.Wrap(err, "search")
		}

		zap.L().Info("search complete",
			zap.String("query", query),
			zap.String("response_type", resp.ResponseType),
			zap.Int("total", resp.Total),
		)

		return enc.Encode(resp)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchThreadID, "thread", "", "conversation thread ID")
	searchCmd.Flags().BoolVar(&searchEvents, "events", false, "print the raw event stream instead of the final response")
	rootCmd.AddCommand(searchCmd)
}
