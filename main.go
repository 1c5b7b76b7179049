package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fiffu/versionwatch/app"
	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib"
	"github.com/fiffu/versionwatch/lib/adapters"
	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/metrics"
	"github.com/fiffu/versionwatch/lib/notifier"
	"github.com/fiffu/versionwatch/lib/poller"
	"github.com/fiffu/versionwatch/lib/scheduler"
	"github.com/fiffu/versionwatch/lib/subscriptions"
	"github.com/fiffu/versionwatch/senders"
	"github.com/fiffu/versionwatch/senders/email"
	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func NewClock() clock.Clock {
	return clock.WallClock
}

func core() fx.Option {
	return fx.Options(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),
		fx.Provide(NewClock),
		fx.Provide(metrics.NewRegistry),
		fx.Provide(metrics.New),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),
		fx.Provide(catalog.NewCatalog),
		fx.Provide(adapters.NewRegistry),

		fx.Provide(email.NewRenderer),
		fx.Provide(senders.NewSenderRegistry),
		fx.Provide(senders.NewSender),
		fx.Provide(senders.NewOperatorAlerter),

		fx.Provide(poller.NewPoller),
		fx.Provide(subscriptions.NewIndex),
		fx.Provide(notifier.NewRetryPolicy),
		fx.Provide(notifier.NewLedger),
		fx.Provide(notifier.NewDispatcher),
		fx.Provide(notifier.NewBatcher),
		fx.Provide(lib.NewService),
	)
}

// runOnce starts the dependency graph, runs fn and tears everything down.
func runOnce(ctx context.Context, fn func(context.Context, *lib.Service, *zap.Logger) error) error {
	var (
		svc *lib.Service
		log *zap.Logger
	)
	fxApp := fx.New(core(), fx.Populate(&svc, &log))
	if err := fxApp.Err(); err != nil {
		return err
	}
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer fxApp.Stop(context.Background())

	return fn(ctx, svc, log)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and poll on a schedule",
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				core(),
				fx.Provide(scheduler.NewScheduler),
				fx.Provide(app.NewAPI),

				fx.Invoke(func(*http.Server, *scheduler.Scheduler) {}),
			).Run()
		},
	}
}

func pollCmd() *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll provider versions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, svc *lib.Service, log *zap.Logger) error {
				summaries, err := svc.PollPlatforms(ctx, platform)
				if err != nil {
					return err
				}
				for _, s := range summaries {
					for _, r := range s.Changed() {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\tadded=%v deprecated=%v\n", r.Service.Key, r.Added, r.Deprecated)
					}
					for key, err := range s.Failed {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\tfailed: %v\n", key, err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&platform, "platform", lib.AllPlatforms, "aws, gcp, azure or all")
	return cmd
}

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send due notification digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, svc *lib.Service, log *zap.Logger) error {
				summary, err := svc.RunBatch(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d sent=%d failed=%d\n", summary.Users, len(summary.Sent), len(summary.Failed))
				return nil
			})
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:          "versionwatch",
		Short:        "Track cloud service versions and notify subscribers",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), pollCmd(), notifyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
