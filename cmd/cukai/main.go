package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dnswd/cukai"
	"github.com/dnswd/cukai/internal/config"
	"github.com/dnswd/cukai/internal/events"
	"github.com/dnswd/cukai/internal/logging"
	"github.com/dnswd/cukai/internal/metrics"
	"github.com/dnswd/cukai/internal/record"
	"github.com/dnswd/cukai/internal/service"
	"github.com/dnswd/cukai/internal/shell"
	"github.com/dnswd/cukai/internal/tax"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 3
)

// errConfig marks failures that happen before any work starts.
var errConfig = errors.New("configuration")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args == nil {
		// cobra falls back to os.Args on a nil slice
		args = []string{}
	}
	root := newRootCmd(viper.New())
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "cukai: %v\n", err)
		if errors.Is(err, errConfig) {
			return exitConfig
		}
		return exitFailed
	}
	return exitOK
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "cukai",
		Short:         "Malaysian personal income tax estimator",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, v, cfgPath)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default ./cukai.yaml if present)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("records-backend", "", "record store: csv, postgres or memory")
	pf.String("records-file", "", "CSV record file")
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("records.backend", pf.Lookup("records-backend"))
	_ = v.BindPFlag("records.file", pf.Lookup("records-file"))

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive menu (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runShell(cmd, v, cfgPath)
			},
		},
		newComputeCmd(),
		&cobra.Command{
			Use:   "records",
			Short: "Print saved tax records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runRecords(cmd, v, cfgPath)
			},
		},
		newInitConfigCmd(),
	)
	return root
}

// app holds everything built from configuration for one invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	svc     *service.AssessmentService
}

func setup(ctx context.Context, v *viper.Viper, cfgPath string) (*app, error) {
	cfg, err := config.Load(v, cfgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	sessionID := logging.NewSessionID()
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Output, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, sessionID, logger)
	}

	m := metrics.New()
	svc := service.New(store,
		service.WithPublisher(pub),
		service.WithMetrics(m),
		service.WithLogger(logger))

	logger.Debug("configuration loaded",
		zap.String("records_backend", cfg.Records.Backend),
		zap.Int("brokers", len(cfg.Events.Brokers)),
		zap.Bool("enforce_caps", cfg.Reliefs.EnforceCaps))
	return &app{cfg: cfg, logger: logger, metrics: m, svc: svc}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (record.Store, error) {
	switch cfg.Records.Backend {
	case config.BackendPG:
		db, err := record.OpenPostgres(ctx, cfg.Records.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return record.NewPostgresStore(db, logger), nil
	case config.BackendMemory:
		return record.NewMemoryStore(), nil
	default:
		return record.NewCSVStore(cfg.Records.File), nil
	}
}

func (a *app) close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("metrics textfile not written", zap.String("path", path), zap.Error(err))
		}
	}
	if err := a.svc.Publisher.Close(); err != nil {
		a.logger.Warn("close publisher", zap.Error(err))
	}
	if err := a.svc.Store.Close(); err != nil {
		a.logger.Warn("close record store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func runShell(cmd *cobra.Command, v *viper.Viper, cfgPath string) error {
	ctx := cmd.Context()
	a, err := setup(ctx, v, cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("session started")
	sh := shell.New(cmd.InOrStdin(), cmd.OutOrStdout(), a.svc, shell.Options{
		Reliefs:     a.cfg.ReliefCatalog(),
		EnforceCaps: a.cfg.Reliefs.EnforceCaps,
		Logger:      a.logger,
	})
	err = sh.Run(ctx)
	a.logger.Info("session ended", zap.Error(err))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runRecords(cmd *cobra.Command, v *viper.Viper, cfgPath string) error {
	a, err := setup(cmd.Context(), v, cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	recs, err := a.svc.Records(cmd.Context())
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tax records found!")
		return nil
	}
	shell.WriteTable(cmd.OutOrStdout(), recs)
	return nil
}

func newComputeCmd() *cobra.Command {
	var (
		income    string
		relief    string
		breakdown bool
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute tax payable for one income and relief total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := parseAmount("income", income)
			if err != nil {
				return err
			}
			rel, err := parseAmount("relief", relief)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			chargeable := in.Subtract(rel)
			fmt.Fprintf(out, "Chargeable Income: %s\n", chargeable)
			if breakdown {
				for _, sl := range tax.Default.Breakdown(chargeable.Amount) {
					fmt.Fprintf(out, "  %s\n", shell.FormatSlice(sl))
				}
			}
			fmt.Fprintf(out, "Tax Payable: %s\n", cukai.NewMoney(tax.Compute(in.Amount, rel.Amount)))
			return nil
		},
	}
	cmd.Flags().StringVar(&income, "income", "", "annual gross income in RM")
	cmd.Flags().StringVar(&relief, "relief", "0", "total relief in RM")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "show the per-bracket breakdown")
	_ = cmd.MarkFlagRequired("income")
	return cmd
}

func parseAmount(name, s string) (cukai.Money, error) {
	m, err := cukai.ParseMoney(s)
	if err != nil {
		return cukai.Money{}, fmt.Errorf("%s: %w: %q", name, tax.ErrInvalidAmount, s)
	}
	if m.IsNegative() {
		return cukai.Money{}, fmt.Errorf("%s: %w: must not be negative", name, tax.ErrInvalidAmount)
	}
	return m, nil
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "Write a default cukai.yaml (existing files are kept)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(dir, config.DefaultFile)
			err := config.WriteTemplate(path)
			switch {
			case errors.Is(err, os.ErrExist):
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left unchanged\n", path)
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
