/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/linearroad"
	"github.com/numaproj/linearroad/pkg/metrics"
	"github.com/numaproj/linearroad/pkg/pipeline"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	sharedutil "github.com/numaproj/linearroad/pkg/shared/util"
	"github.com/numaproj/linearroad/pkg/sinks"
	"github.com/numaproj/linearroad/pkg/sources"
)

func NewRunCommand() *cobra.Command {
	var (
		configPath string
		input      string
	)

	command := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over an input file or generated traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("run")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, logger)

			conf, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if input != "" {
				conf.Source.Path = input
			}
			v := linearroad.GetVersion()
			metrics.BuildInfo.WithLabelValues(v.Version, v.Platform).Set(1)
			logger.Infow("Starting", "version", v.Version, "partitions", conf.Pipeline.Partitions)
			return run(ctx, conf)
		},
	}
	command.Flags().StringVar(&configPath, "config", sharedutil.LookupEnvStringOr("LRB_CONFIG", ""), "Path of the configuration file")
	command.Flags().StringVar(&input, "input", "", "Path of an LRB input file, overrides the configured source")
	return command
}

func run(ctx context.Context, conf *config.Config) error {
	logger := logging.FromContext(ctx)
	src, err := sources.New(ctx, conf.Source)
	if err != nil {
		return fmt.Errorf("failed to create source, %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Errorw("Failed to close source", zap.Error(err))
		}
	}()
	sks, err := sinks.Build(ctx, conf.Sinks)
	if err != nil {
		return fmt.Errorf("failed to create sinks, %w", err)
	}
	defer func() {
		if err := sinks.CloseAll(sks); err != nil {
			logger.Errorw("Failed to close sinks", zap.Error(err))
		}
	}()
	p, err := pipeline.New(ctx, conf, src, sks)
	if err != nil {
		return err
	}
	if conf.Metrics.Enabled {
		ms := metrics.NewMetricsServer(metrics.WithPort(conf.Metrics.Port), metrics.WithHealthCheckExecutor(p.Healthy))
		_, shutdown, err := ms.Start(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Errorw("Failed to shutdown metrics server", zap.Error(err))
			}
		}()
	}
	err = p.Run(ctx)
	logger.Infow("Pipeline stats", "stats", sharedutil.MustJSON(p.Stats()))
	if err != nil {
		logger.Errorw("Pipeline failed", zap.Error(err))
		return err
	}
	return nil
}
