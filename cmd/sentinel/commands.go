package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/config"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/portfolio"
	"TrendSentinel/internal/scheduler"
	"TrendSentinel/internal/server"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "sentinel",
		Short:         "TrendSentinel - breakout trend tracking and price alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "Configuration file path")

	load := func() (*app, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return newApp(cfg)
	}

	rootCmd.AddCommand(newRunCmd(load))
	for _, j := range []struct{ job, short string }{
		{scheduler.JobTick, "Run one orchestrator tick as the scheduler would now"},
		{scheduler.JobLive, "Refresh stale live quotes"},
		{scheduler.JobFunds, "Refresh stale investment fund quotes"},
		{scheduler.JobIndicator, "Advance stale trend indicators"},
		{scheduler.JobAlerts, "Register and trigger price alerts"},
		{scheduler.JobHistory, "Append today's portfolio valuations"},
	} {
		rootCmd.AddCommand(newJobCmd(load, j.job, j.short))
	}
	rootCmd.AddCommand(newResetCmd(load))
	rootCmd.AddCommand(newScreenCmd(load))
	rootCmd.AddCommand(newStatusCmd(load))
	rootCmd.AddCommand(newPortfolioCmd(load))
	rootCmd.AddCommand(newAlertCmd(load))
	rootCmd.AddCommand(newCryptoCmd(load))
	rootCmd.AddCommand(newSearchCmd(load))
	return rootCmd
}

type loader func() (*app, error)

func universeArg(args []string, i int) (model.Universe, error) {
	if len(args) <= i {
		return model.Equities, nil
	}
	return model.ParseUniverse(args[i])
}

func confirm(cmd *cobra.Command, msg string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: msg}, &ok); err != nil {
		return false, fmt.Errorf("confirmation failed, pass --yes to skip it: %w", err)
	}
	return ok, nil
}

func newRunCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler, the ops server and the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.log.Info().Msg("TrendSentinel starting")

			if a.cfg.Schedule.Enabled {
				if err := a.sched.RegisterAll(ctx); err != nil {
					return fmt.Errorf("register cron tasks: %w", err)
				}
				a.sched.Start()
				defer a.sched.Stop()
			}
			if a.cfg.Schedule.RunOnStart {
				go func() {
					for _, u := range []model.Universe{model.Equities, model.Crypto} {
						if _, err := a.sched.RunJob(ctx, scheduler.JobTick, u); err != nil {
							a.log.Error().Err(err).Str("universe", string(u)).Msg("run on start")
						}
					}
				}()
			}

			var srv *server.Server
			srvErr := make(chan error, 1)
			if a.cfg.Server.Enabled {
				srv = server.New(server.Config{
					Addr:           a.cfg.Server.Addr,
					Token:          a.cfg.Server.Token,
					AllowedOrigins: a.cfg.Server.AllowedOrigins,
					Log:            a.log,
					Jobs:           a.sched,
					Runs:           a.recorder,
					Repo:           a.repo,
					Screens:        a.screens,
					Metrics:        a.metrics,
				})
				go func() { srvErr <- srv.Start() }()
			}

			if a.telegram != nil && a.cfg.Notifier.Commands {
				go a.telegram.Listen(ctx, a.botCommands, a.log)
				a.log.Info().Msg("telegram polling started")
			}

			select {
			case <-ctx.Done():
				a.log.Info().Msg("shutdown signal received, stopping")
			case err := <-srvErr:
				if err != nil {
					return err
				}
			}
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.log.Warn().Err(err).Msg("server shutdown")
				}
			}
			a.log.Info().Msg("TrendSentinel stopped")
			return nil
		},
	}
}

func newJobCmd(load loader, job, short string) *cobra.Command {
	return &cobra.Command{
		Use:   job + " [universe]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := universeArg(args, 0)
			if err != nil {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			run, err := a.sched.RunJob(cmd.Context(), job, u)
			if run != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderRuns(*run))
			}
			return err
		},
	}
}

func newResetCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset [universe]",
		Short: "Reset every indicator watermark so the next run recomputes all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := universeArg(args, 0)
			if err != nil {
				return err
			}
			ok, err := confirm(cmd, fmt.Sprintf("Reset all %s indicators?", u))
			if err != nil || !ok {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			if deferred, _ := cmd.Flags().GetBool("deferred"); deferred {
				status, err := a.repo.Status(cmd.Context(), u)
				if err != nil {
					return err
				}
				status.Action = model.ActionForceReset
				return a.repo.SaveStatus(cmd.Context(), u, status)
			}
			run, err := a.sched.RunJob(cmd.Context(), scheduler.JobReset, u)
			if run != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderRuns(*run))
			}
			return err
		},
	}
	cmd.Flags().Bool("yes", false, "Do not ask for confirmation")
	cmd.Flags().Bool("deferred", false, "Let the next scheduler tick reset and reindex")
	return cmd
}

func newScreenCmd(load loader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "screen <name> [universe]",
		Short: "List instruments matching a screener",
		Long:  "Screeners: action, soon, speed, strong, young.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := universeArg(args, 1)
			if err != nil {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			instruments, err := a.repo.Instruments(cmd.Context(), u)
			if err != nil {
				return err
			}
			out, err := a.screens.Screen(args[0], instruments, time.Now(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderScreen(args[0], out))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows (default 50)")
	return cmd
}

func newStatusCmd(load loader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show universe status and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			text, err := a.statusText(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "runs", 10, "Number of recent runs to show")
	return cmd
}

func newPortfolioCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio <user> [universe]",
		Short: "Value a user portfolio at live prices",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := universeArg(args, 1)
			if err != nil {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			conf, err := a.repo.UserConf(cmd.Context(), u, args[0])
			if err != nil {
				return err
			}
			instruments, err := a.repo.Instruments(cmd.Context(), u)
			if err != nil {
				return err
			}
			s := portfolio.Details(conf, portfolio.Prices(instruments))
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(args[0], s, len(conf.History)))
			return nil
		},
	}
}

func newAlertCmd(load loader) *cobra.Command {
	var universe string
	alertCmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage price alerts",
	}
	alertCmd.PersistentFlags().StringVar(&universe, "universe", "current", "Universe of the alert")

	var author string
	create := &cobra.Command{
		Use:   "create <isin> <up|down> <value>",
		Short: "Create a price alert",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := model.ParseUniverse(universe)
			if err != nil {
				return err
			}
			dir, err := parseDirection(args[1])
			if err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			created, err := a.alerts.CreateAlert(cmd.Context(), u, model.Alert{
				ISIN: args[0], AuthorID: author, Direction: dir, Value: value,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created alert %s\n", created.ID)
			return nil
		},
	}
	create.Flags().StringVar(&author, "author", "", "User id notified when the alert triggers")
	_ = create.MarkFlagRequired("author")

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := model.ParseUniverse(universe)
			if err != nil {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()
			return a.alerts.CancelAlert(cmd.Context(), u, args[0])
		},
	}

	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the alert bounds from registered alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := model.ParseUniverse(universe)
			if err != nil {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()
			confs, err := a.alerts.RebuildConfs(cmd.Context(), u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d alert bounds rebuilt\n", len(confs))
			return nil
		},
	}

	alertCmd.AddCommand(create, cancel, rebuild)
	return alertCmd
}

func parseDirection(s string) (model.Direction, error) {
	switch strings.ToLower(s) {
	case "up":
		return model.Up, nil
	case "down":
		return model.Down, nil
	}
	return 0, fmt.Errorf("direction must be up or down, got %q", s)
}

func newCryptoCmd(load loader) *cobra.Command {
	cryptoCmd := &cobra.Command{
		Use:   "crypto",
		Short: "Manage the crypto universe",
	}
	cryptoCmd.PersistentFlags().Bool("yes", false, "Do not ask for confirmation")

	cryptoCmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Import the provider's crypto listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			eod, ok := a.eod()
			if !ok {
				return errors.New("crypto import needs the eod quote source")
			}
			instruments, err := eod.ListCrypto(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.repo.SaveInstruments(cmd.Context(), model.Crypto, instruments); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d crypto instruments imported\n", len(instruments))
			return nil
		},
	})

	cryptoCmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the whole crypto instrument list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirm(cmd, "Delete every crypto instrument?")
			if err != nil || !ok {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()
			return a.repo.DeleteInstruments(cmd.Context(), model.Crypto)
		},
	})
	return cryptoCmd
}

func newSearchCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "search <word>",
		Short: "Look up the provider ticker of a name or ISIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.close()

			eod, ok := a.eod()
			if !ok {
				return errors.New("search needs the eod quote source")
			}
			ticker, err := eod.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ticker == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ticker)
			return nil
		},
	}
}

// eod returns the EOD client under the cache wrapper, if that is the source.
func (a *app) eod() (*collector.EODFetcher, bool) {
	f := a.fetcher
	if c, ok := f.(*collector.CachedFetcher); ok {
		f = c.Fetcher
	}
	eod, ok := f.(*collector.EODFetcher)
	return eod, ok
}
