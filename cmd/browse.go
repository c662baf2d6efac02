package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/warisan-digital/arkib/internal/store"
)

var (
	browseField string
	browseValue string
	browseLimit int
	browseOrder string
	browseAsc   bool
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List archive records by metadata filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		desc := !browseAsc
		archives, err := st.Browse(ctx, store.BrowseFilter{
			Field:     store.BrowseField(browseField),
			Value:     browseValue,
			Limit:     browseLimit,
			OrderBy:   browseOrder,
			OrderDesc: &desc,
		})
		if err != nil {
			return eris.Wrap(err, "browse")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(archives)
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseField, "field", "", "filter field (tag, media_type, title, date_after, date_before)")
	browseCmd.Flags().StringVar(&browseValue, "value", "", "filter value")
	browseCmd.Flags().IntVar(&browseLimit, "limit", store.DefaultBrowseLimit, "max records to return")
	browseCmd.Flags().StringVar(&browseOrder, "order-by", "", "order column (created_at, updated_at, title)")
	browseCmd.Flags().BoolVar(&browseAsc, "asc", false, "sort ascending instead of descending")
	rootCmd.AddCommand(browseCmd)
}
