package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/ordsim/maintain"
)

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Bring the similarity index up to date with the hash store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			hashes, err := a.openHashes(ctx)
			if err != nil {
				return err
			}
			index, err := a.openIndex(ctx)
			if err != nil {
				return err
			}
			defer index.Close()

			maintainer := maintain.New(hashes, index, func(o *maintain.Options) {
				o.TopN = a.cfg.TopN
				o.Logger = a.logger.WithComponent("maintain").Logger
			})
			return maintainer.Run(ctx)
		},
	}
}
