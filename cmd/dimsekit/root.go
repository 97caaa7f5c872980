package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/config"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/logging"
	"github.com/caio-sobreiro/dimsenet/trace"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *dimse.Engine
	tracer *trace.Tracer
	// calledAE is used for peers given as host:port.
	calledAE string
}

type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
	aeTitle    string
	calledAE   string
	traceFile  string
}

func newRootCmd(ctx context.Context) *cobra.Command {
	a := &app{}
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "dimsekit",
		Short: "DICOM message exchange toolkit",
		Long: `dimsekit exchanges DIMSE messages with DICOM peers.

A peer is either an AE title from the peers table of the config file or a
host:port address. Query and retrieve keys are given as -k Keyword=value or
-k gggg,eeee=value and override the defaults of each command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(flags)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.AddCommand(
		newVersionCmd(),
		newEchoCmd(ctx, a),
		newStoreCmd(ctx, a),
		newFindCmd(ctx, a),
		newMoveCmd(ctx, a),
		newGetCmd(ctx, a),
		newCommitCmd(ctx, a),
		newServeCmd(ctx, a),
	)

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.BoolVar(&flags.logJSON, "log-json", false, "Log JSON records instead of text")
	pf.StringVarP(&flags.aeTitle, "ae", "a", "", "Local AE title (overrides the config file)")
	pf.StringVar(&flags.calledAE, "called", "ANY-SCP", "Called AE title for host:port peers")
	pf.StringVar(&flags.traceFile, "trace", "", "Write a DIMSE trace to this file")
	return cmd
}

func (a *app) setup(flags *rootFlags) error {
	level, ok := logging.ParseLevel(flags.logLevel)
	a.logger = logging.Logger(os.Stderr, flags.logJSON, level)
	slog.SetDefault(a.logger)
	if !ok {
		a.logger.Warn("Invalid log level, defaulting to INFO", "level", flags.logLevel)
	}

	cfg := config.Default()
	if flags.configPath != "" {
		var err error
		if cfg, err = config.Load(flags.configPath); err != nil {
			return err
		}
	}
	if flags.aeTitle != "" {
		cfg.AETitle = flags.aeTitle
	}
	if flags.traceFile != "" {
		cfg.Trace.File = flags.traceFile
	}
	a.calledAE = flags.calledAE
	a.cfg = cfg

	engineCfg := cfg.EngineConfig()
	engineCfg.Logger = a.logger
	if cfg.Trace.File != "" {
		tr, err := trace.New(trace.Config{
			File:       cfg.Trace.File,
			MaxSizeMB:  cfg.Trace.MaxSizeMB,
			MaxBackups: cfg.Trace.MaxBackups,
			MaxAgeDays: cfg.Trace.MaxAgeDays,
			DumpDir:    cfg.Trace.DumpDir,
		})
		if err != nil {
			return err
		}
		a.tracer = tr
		engineCfg.Tracer = tr
	}
	a.engine = dimse.New(engineCfg)
	return nil
}

func (a *app) close() {
	if a.tracer != nil {
		if err := a.tracer.Close(); err != nil {
			a.logger.Warn("Closing trace file failed", "error", err)
		}
	}
}

// connect opens an association with target proposing abstractSyntaxes.
func (a *app) connect(ctx context.Context, target string, abstractSyntaxes []string) (*client.Association, error) {
	called, address, err := a.cfg.Peer(target)
	if err != nil {
		return nil, err
	}
	if called == "" {
		called = a.calledAE
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeouts.Connect)
	defer cancel()

	assoc, err := client.ConnectContext(ctx, address, client.Config{
		CallingAETitle:   a.cfg.AETitle,
		CalledAETitle:    called,
		MaxPDULength:     a.cfg.MaxPDULength,
		ConnectTimeout:   a.cfg.Timeouts.Connect,
		ReadTimeout:      a.cfg.Timeouts.Read,
		WriteTimeout:     a.cfg.Timeouts.Write,
		Logger:           a.logger,
		AbstractSyntaxes: abstractSyntaxes,
		Engine:           a.engine,
	})
	if err != nil {
		return nil, fmt.Errorf("associate with %s (%s): %w", called, address, err)
	}
	return assoc, nil
}

// release ends assoc, logging rather than failing the command when the peer
// does not answer.
func (a *app) release(assoc *client.Association) {
	if err := assoc.Release(); err != nil {
		a.logger.Warn("Association release failed", "error", err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dimsekit %s (%s)\n", version, commit)
		},
	}
}
