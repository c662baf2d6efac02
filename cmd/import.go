package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/seed"
	"github.com/warisan-digital/arkib/internal/store"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import archive records from a YAML seed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, err := seed.LoadFile(importFilePath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		cache, embedder, err := initEmbedder()
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}

		ps, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.New("import requires a postgres store")
		}

		written, err := seed.Import(ctx, ps.Pool(), embedder, records)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int64("written", written),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to YAML seed file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
