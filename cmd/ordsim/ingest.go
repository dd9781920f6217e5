package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/ordsim/ingest"
	"github.com/hupe1980/ordsim/upstream"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Pull new inscriptions from upstream and fingerprint them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			hashes, err := a.openHashes(ctx)
			if err != nil {
				return err
			}
			meta, err := a.openMeta(ctx)
			if err != nil {
				return err
			}
			defer meta.Close()
			ckpt, err := a.openCheckpoint(ctx)
			if err != nil {
				return err
			}

			pipeline := ingest.New(
				upstream.New(a.cfg.UpstreamURL),
				hashes, meta, ckpt, a.encoder(),
				func(o *ingest.Options) {
					o.PageSize = a.cfg.PageSize
					o.RetryBackoff = a.cfg.RetryBackoff
					o.ContentRPS = a.cfg.ContentRPS
					o.Logger = a.logger.WithComponent("ingest").Logger
				},
			)
			return pipeline.Run(ctx)
		},
	}
}
