package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ordsim"
	"github.com/hupe1980/ordsim/accel"
	"github.com/hupe1980/ordsim/hashstore"
	"github.com/hupe1980/ordsim/upstream"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		file string
		topN int
	)

	cmd := &cobra.Command{
		Use:   "query [ord-id]",
		Short: "Find the most similar inscriptions for an ID or a local image file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if (len(args) == 0) == (file == "") {
				return errors.New("pass exactly one of an ord-id argument or --file")
			}

			orch, err := a.newOrchestrator(ctx)
			if err != nil {
				return err
			}

			var results []ordsim.Result
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				results, err = orch.ByImage(ctx, data, topN)
				if err != nil {
					return err
				}
			} else {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return errors.New("ord-id must be a non-negative integer")
				}
				results, err = orch.ByID(ctx, id, topN)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "query by local image file instead of ord-id")
	cmd.Flags().IntVarP(&topN, "top-n", "n", 0, "number of matches to return (default from config)")

	return cmd
}

func (a *app) newOrchestrator(ctx context.Context) (*ordsim.Orchestrator, error) {
	index, err := a.openIndex(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := a.openMeta(ctx)
	if err != nil {
		return nil, err
	}

	opts := []ordsim.Option{
		ordsim.WithTopN(a.cfg.TopN),
		ordsim.WithLogger(a.logger),
		ordsim.WithUpstream(upstream.New(a.cfg.UpstreamURL)),
		ordsim.WithMetadata(meta),
	}
	if a.cfg.AccelURL != "" {
		opts = append(opts, ordsim.WithAccel(accel.New(a.cfg.AccelURL, func(o *accel.Options) {
			o.Timeout = a.cfg.AccelTimeout
		})))
	}

	loader := func(ctx context.Context) (*hashstore.Store, error) {
		return a.openHashes(ctx)
	}
	return ordsim.NewOrchestrator(index, a.encoder(), loader, opts...)
}
