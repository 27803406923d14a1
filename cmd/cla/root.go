package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/blobstore"
	miniostore "github.com/hupe1980/cla/blobstore/minio"
	s3store "github.com/hupe1980/cla/blobstore/s3"
	"github.com/hupe1980/cla/cocode"
	"github.com/hupe1980/cla/codec"
	"github.com/hupe1980/cla/persist"
)

var version = "0.1.0"

// app carries the resolved configuration shared by all subcommands.
type app struct {
	v   *viper.Viper
	log *cla.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "cla",
		Short:         "Compressed linear algebra on column-group encoded matrices",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML config file (optional)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.Int("threads", runtime.NumCPU(), "Degree of parallelism")
	pf.String("store-dir", ".", "Local directory used when no object store is configured")
	pf.String("s3-bucket", "", "Store blocks in this S3 bucket")
	pf.String("s3-prefix", "", "Key prefix inside the S3 bucket")
	pf.String("minio-endpoint", "", "Store blocks on this MinIO endpoint (host:port)")
	pf.String("minio-bucket", "", "MinIO bucket")
	pf.String("minio-access-key", "", "MinIO access key")
	pf.String("minio-secret-key", "", "MinIO secret key")
	pf.Bool("minio-secure", true, "Use TLS for MinIO")
	pf.String("output", "text", "Output format (text, json)")

	a.v.SetEnvPrefix("CLA")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(pf)

	root.AddCommand(
		newCompressCmd(a),
		newInfoCmd(a),
		newDecompressCmd(a),
		newAggregateCmd(a),
		newListCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format := a.v.GetString("log-format"); format {
	case "json":
		a.log = cla.NewLogger(slog.NewJSONHandler(cmd.ErrOrStderr(), opts))
	case "text":
		a.log = cla.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

func (a *app) threads() int {
	return max(a.v.GetInt("threads"), 1)
}

// blockOptions maps CLI settings to compression options.
func (a *app) blockOptions() ([]cla.Option, error) {
	opts := []cla.Option{
		cla.WithLogger(a.log),
		cla.WithDictionaryEncoding(!a.v.GetBool("no-ddc")),
	}
	switch p := a.v.GetString("planner"); p {
	case "", "greedy":
	case "singletons":
		opts = append(opts, cla.WithPlanner(cocode.Singletons))
	default:
		return nil, fmt.Errorf("unknown planner %q", p)
	}
	return opts, nil
}

// store opens the configured blob store: S3, then MinIO, then the local
// directory.
func (a *app) store(ctx context.Context) (blobstore.Store, error) {
	if bucket := a.v.GetString("s3-bucket"); bucket != "" {
		return s3store.Open(ctx, bucket, a.v.GetString("s3-prefix"))
	}

	if endpoint := a.v.GetString("minio-endpoint"); endpoint != "" {
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(a.v.GetString("minio-access-key"), a.v.GetString("minio-secret-key"), ""),
			Secure: a.v.GetBool("minio-secure"),
		})
		if err != nil {
			return nil, err
		}
		return miniostore.NewStore(client, a.v.GetString("minio-bucket"), ""), nil
	}

	return blobstore.NewLocalStore(a.v.GetString("store-dir")), nil
}

func (a *app) persistOptions() []persist.Option {
	return []persist.Option{persist.WithLogger(a.log)}
}

// print writes v as indented JSON when --output=json, otherwise calls text.
func (a *app) print(w io.Writer, v any, text func(io.Writer) error) error {
	switch format := a.v.GetString("output"); format {
	case "json":
		data, err := codec.Default.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		return text(w)
	default:
		return fmt.Errorf("invalid output format %q", format)
	}
}
