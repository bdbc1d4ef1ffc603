/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 The Tabulata Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tabulata/tabulata/core/pivot"
	"github.com/tabulata/tabulata/core/server"
	"github.com/tabulata/tabulata/datasources"
	"github.com/tabulata/tabulata/demo"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabulata",
		Short: "Hierarchical pivot table server",
	}
	cmd.AddCommand(serveCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TABULATA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pivot API and debug page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("csv", "", "serve a CSV file instead of the embedded demo data")
	flags.String("dataset-name", "data", "dataset name for --csv")
	flags.StringSlice("group-by", nil, "default row hierarchy fields for --csv")
	flags.StringSlice("split-by", nil, "default cross-tab split fields for --csv")
	flags.StringSlice("metrics", nil, "default metric fields for --csv")
	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("binding serve flags: %v", err))
	}

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	logger, err := newLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	dataset, err := loadDataset(v)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(logger, dataset)
	if err != nil {
		return err
	}

	addr := v.GetString("addr")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("dataset", dataset.Name))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadDataset serves either a CSV file named on the command line or the
// embedded demo data.
func loadDataset(v *viper.Viper) (*server.Dataset, error) {
	path := v.GetString("csv")
	if path == "" {
		return demo.SalesDataset()
	}

	rows, columns, err := datasources.LoadCSVFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg := pivot.Config{
		GroupBy: v.GetStringSlice("group-by"),
		SplitBy: v.GetStringSlice("split-by"),
	}
	for _, field := range v.GetStringSlice("metrics") {
		cfg.Metrics = append(cfg.Metrics, pivot.Metric{Field: field, Aggregation: pivot.SumAggregation})
	}
	if len(cfg.Metrics) == 0 {
		// default to the numeric columns
		for _, col := range columns {
			if col.Type == "number" {
				cfg.Metrics = append(cfg.Metrics, pivot.Metric{Field: col.Name, Aggregation: pivot.SumAggregation})
			}
		}
	}
	if len(cfg.GroupBy) == 0 {
		for _, col := range columns {
			if col.Type == "string" {
				cfg.GroupBy = append(cfg.GroupBy, col.Name)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("default config for %s: %w", path, err)
	}
	return server.NewDataset(v.GetString("dataset-name"), rows, columns, cfg), nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
