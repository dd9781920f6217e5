package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	minioclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ordsim"
	"github.com/hupe1980/ordsim/blobstore"
	minioblob "github.com/hupe1980/ordsim/blobstore/minio"
	s3blob "github.com/hupe1980/ordsim/blobstore/s3"
	"github.com/hupe1980/ordsim/checkpoint"
	"github.com/hupe1980/ordsim/config"
	"github.com/hupe1980/ordsim/fingerprint"
	"github.com/hupe1980/ordsim/hashstore"
	"github.com/hupe1980/ordsim/metastore"
	"github.com/hupe1980/ordsim/simindex"
)

// app carries the loaded configuration and logger shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger *ordsim.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "ordsim",
		Short:         "Inscription image similarity engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := cfg.SlogLevel()
			if cfg.LogFormat == "json" {
				a.logger = ordsim.NewJSONLogger(level)
			} else {
				a.logger = ordsim.NewTextLogger(level)
			}
			slog.SetDefault(a.logger.Logger)

			if cfg.MetricsAddr != "" {
				go a.serveMetrics(cfg.MetricsAddr)
			}
			return nil
		},
	}

	cmd.AddCommand(newIngestCmd(a))
	cmd.AddCommand(newReindexCmd(a))
	cmd.AddCommand(newQueryCmd(a))

	return cmd
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.logger.Error("metrics listener failed", "addr", addr, "error", err)
	}
}

// openBlobs builds the snapshot blob store from the configured backend.
func (a *app) openBlobs(ctx context.Context) (blobstore.Store, error) {
	switch a.cfg.BlobBackend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3blob.NewStore(awss3.NewFromConfig(awsCfg), a.cfg.S3.Bucket, a.cfg.S3.Prefix), nil
	case "minio":
		client, err := minioclient.New(a.cfg.Minio.Endpoint, &minioclient.Options{
			Creds:  credentials.NewStaticV4(a.cfg.Minio.AccessKey, a.cfg.Minio.SecretKey, ""),
			Secure: a.cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return minioblob.NewStore(client, a.cfg.Minio.Bucket, ""), nil
	default:
		return blobstore.NewLocalStore(a.cfg.DataDir)
	}
}

func (a *app) openHashes(ctx context.Context) (*hashstore.Store, error) {
	blobs, err := a.openBlobs(ctx)
	if err != nil {
		return nil, err
	}
	return hashstore.Open(ctx, blobs, func(o *hashstore.Options) {
		o.Compression = a.cfg.SnapshotCompression
	})
}

func (a *app) openIndex(ctx context.Context) (*simindex.Index, error) {
	return simindex.Open(ctx, filepath.Join(a.cfg.DataDir, "simindex.db"))
}

func (a *app) openMeta(ctx context.Context) (*metastore.Store, error) {
	return metastore.Open(ctx, filepath.Join(a.cfg.DataDir, "metadata.db"))
}

// openCheckpoint builds the ingestion checkpoint store: DynamoDB when a
// table is configured, a local file otherwise.
func (a *app) openCheckpoint(ctx context.Context) (checkpoint.Store, error) {
	if a.cfg.CheckpointTable == "" {
		return checkpoint.NewFileStore(filepath.Join(a.cfg.DataDir, "checkpoint")), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return checkpoint.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), a.cfg.CheckpointTable, "ingest"), nil
}

func (a *app) encoder() *fingerprint.Encoder {
	return fingerprint.NewEncoder(a.cfg.HashSize)
}
