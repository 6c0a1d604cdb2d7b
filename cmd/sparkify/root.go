package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sparkify/internal/config"
	"sparkify/internal/ddl"
	"sparkify/internal/loader"
	"sparkify/internal/logging"
	"sparkify/internal/metrics"
	"sparkify/internal/metrics/datadog"
	"sparkify/internal/metrics/prompush"
	"sparkify/internal/pipeline"
	"sparkify/internal/provision"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath     string
	logLevel       string
	dev            bool
	metricsBackend string
	pushGatewayURL string
	statsdAddr     string
	job            string

	logger *zap.Logger
	closer func()
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "sparkify",
		Short:         "Build the Sparkify song-play warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", config.DefaultPath, "path to the dwh.cfg INI file")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&o.dev, "dev", false, "human readable console logs")
	pf.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog, none (overrides env METRICS_BACKEND)")
	pf.StringVar(&o.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	pf.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_URL)")
	pf.StringVar(&o.job, "job", pipeline.DefaultJob, "job name used to label metrics")

	root.AddCommand(
		newRunCmd(o),
		newResetCmd(o),
		newLoadCmd(o),
		newTransformCmd(o),
		newVerifyCmd(o),
		newValidateCmd(o),
		newProvisionCmd(o),
		newTeardownCmd(o),
	)
	return root
}

func (o *options) setup() error {
	logger, err := logging.New(o.logLevel, o.dev)
	if err != nil {
		return err
	}
	o.logger = logger
	o.closer = func() {}

	backend := firstNonEmpty(o.metricsBackend, os.Getenv("METRICS_BACKEND"), "none")
	switch backend {
	case "pushgateway":
		url := firstNonEmpty(o.pushGatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(o.job, url)
		if err != nil {
			logger.Warn("metrics: pushgateway backend unavailable; using nop", zap.Error(err))
			return nil
		}
		metrics.SetBackend(b)
		logger.Info("metrics enabled", zap.String("backend", backend), zap.String("url", url), zap.String("job", o.job))
	case "datadog":
		addr := firstNonEmpty(o.statsdAddr, os.Getenv("DD_DOGSTATSD_URL"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "sparkify."})
		if err != nil {
			logger.Warn("metrics: datadog backend unavailable; using nop", zap.Error(err))
			return nil
		}
		metrics.SetBackend(b)
		o.closer = func() { _ = b.Close() }
		logger.Info("metrics enabled", zap.String("backend", backend), zap.String("addr", addr))
	case "none":
		logger.Debug("metrics disabled")
	default:
		logger.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", backend))
	}
	return nil
}

// wrap runs fn and then flushes metrics and the logger, whether fn failed
// or not.
func (o *options) wrap(fn func(cmd *cobra.Command, rec config.Record) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		defer o.teardown()
		rec, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		return fn(cmd, rec)
	}
}

func (o *options) teardown() {
	if o.logger == nil {
		return
	}
	if err := metrics.Flush(); err != nil {
		o.logger.Warn("metrics flush failed", zap.Error(err))
	}
	o.closer()
	_ = o.logger.Sync()
}

// orchestrator returns a pipeline wired for rec. Non-Redshift warehouses
// reading s3:// locations get an S3 client; Redshift COPYs on the server.
func (o *options) orchestrator(ctx context.Context, rec config.Record) (*pipeline.Orchestrator, error) {
	var api *s3.Client
	if rec.Dialect() != ddl.Redshift && readsS3(rec) {
		cfg, err := provision.AWSConfig(ctx, rec)
		if err != nil {
			return nil, err
		}
		api = s3.NewFromConfig(cfg)
	}

	var ld *loader.Loader
	if api != nil {
		ld = loader.New(o.logger, api)
	} else {
		ld = loader.New(o.logger, nil)
	}
	orc := pipeline.New(o.logger, ld)
	orc.Job = o.job
	return orc, nil
}

func readsS3(rec config.Record) bool {
	for _, loc := range []string{rec.LogData, rec.LogJSONPath, rec.SongData} {
		if strings.HasPrefix(loc, "s3://") {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
