package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/config"
	"github.com/jacentio/docbase/store"
	"github.com/jacentio/docbase/store/instrument"
)

// app holds the state shared by every command.
type app struct {
	configFile string
	output     string
	verbose    bool

	registry *store.Registry
	logger   *zap.Logger
	out      io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "docbase",
		Short: "Inspect and edit documents in configured docbase collections",
		Long: `docbase reads the store definitions of a docbase configuration file and
runs repository operations against its collections: fetch documents by id,
list and filter them, write raw JSON documents and run store-native queries.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "docbase.yaml", "Configuration file")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "Output format: json or yaml")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newGetCmd(a),
		newListCmd(a),
		newPutCmd(a),
		newRemoveCmd(a),
		newQueryCmd(a),
		newDescribeCmd(a),
	)
	return root
}

// setup loads the configuration and registers its collections. A registry
// supplied up front is used as is.
func (a *app) setup(ctx context.Context) error {
	if a.output != "json" && a.output != "yaml" {
		return fmt.Errorf("unknown output format %q", a.output)
	}
	if a.registry != nil {
		if a.logger == nil {
			a.logger = zap.NewNop()
		}
		return nil
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	var metrics *instrument.Metrics
	if cfg.Instrument {
		if metrics, err = instrument.NewMetrics(prometheus.DefaultRegisterer); err != nil {
			return err
		}
	}

	a.registry = store.NewRegistry(logger)
	return config.Apply(ctx, cfg, a.registry, config.Options{Logger: logger, Metrics: metrics})
}

func (a *app) repository(collection string) (store.Repository, error) {
	return a.registry.Adapter(collection)
}

func (a *app) key(id, partition string) store.Key {
	return store.PartitionedID(id, partition)
}
