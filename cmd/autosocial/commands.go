package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teazle/autosocialai/internal/app"
	"github.com/teazle/autosocialai/internal/config"
	"github.com/teazle/autosocialai/internal/logging"
	"github.com/teazle/autosocialai/internal/usecase"
)

const configPathEnv = "AUTOSOCIAL_CONFIG"

type cli struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "autosocial",
		Short:        "Generate, validate and publish social media posts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file (overrides "+configPathEnv+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		c.serveCmd(),
		c.workerCmd(),
		c.generateCmd(),
		c.regenerateCmd(),
		c.revalidateCmd(),
		c.publishCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) load() (config.Config, *slog.Logger) {
	if c.configPath != "" {
		_ = os.Setenv(configPathEnv, c.configPath)
	}
	cfg := config.Load()
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	return cfg, logging.New(cfg.Logging)
}

// withApp builds the application, runs fn and releases connections.
func (c *cli) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, logger := c.load()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()
	return fn(application)
}

func (c *cli) serveCmd() *cobra.Command {
	var noWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API together with the background worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Serve(cmd.Context(), !noWorker)
			})
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "serve the API only")
	return cmd
}

func (c *cli) workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the due-post and generation jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Work(cmd.Context())
			})
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	var clientID string
	var days int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fill a client's calendar, or every active client's when --client is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				var (
					report usecase.PlanReport
					err    error
				)
				if clientID == "" {
					report, err = a.Planner.Run(cmd.Context())
				} else {
					report, err = a.Planner.RunClient(cmd.Context(), clientID, days)
				}
				if err != nil {
					return err
				}
				items := make([]any, 0, len(report.Created))
				for _, o := range report.Created {
					items = append(items, map[string]any{
						"id":                o.Item.ID,
						"scheduled_at":      o.Item.ScheduledAt,
						"validation_status": o.Item.ValidationStatus,
						"attempts":          o.Attempts,
					})
				}
				return printJSON(cmd, map[string]any{"report": report, "posts": items})
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().IntVar(&days, "days", 28, "planning horizon in days for a single client")
	return cmd
}

func (c *cli) regenerateCmd() *cobra.Command {
	var postID, mode string
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate a stored post using its verdict and editor comments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := usecase.ParseMode(mode)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				outcome, err := a.Orchestrator.Regenerate(cmd.Context(), postID, m)
				if err != nil {
					return err
				}
				return printJSON(cmd, outcomeView(outcome))
			})
		},
	}
	cmd.Flags().StringVar(&postID, "post", "", "pipeline item id")
	cmd.Flags().StringVar(&mode, "mode", "all", "all, content or image")
	_ = cmd.MarkFlagRequired("post")
	return cmd
}

func (c *cli) revalidateCmd() *cobra.Command {
	var postID string
	cmd := &cobra.Command{
		Use:   "revalidate",
		Short: "Validate a stored post again and record the verdict",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				outcome, err := a.Orchestrator.Revalidate(cmd.Context(), postID)
				if err != nil {
					return err
				}
				return printJSON(cmd, outcomeView(outcome))
			})
		},
	}
	cmd.Flags().StringVar(&postID, "post", "", "pipeline item id")
	_ = cmd.MarkFlagRequired("post")
	return cmd
}

func (c *cli) publishCmd() *cobra.Command {
	var postID string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one post now, or every due post when --post is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				if postID == "" {
					report, err := a.Publisher.PublishDue(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd, report)
				}
				res, err := a.Publisher.Publish(cmd.Context(), postID)
				if printErr := printJSON(cmd, res); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&postID, "post", "", "pipeline item id")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func outcomeView(o usecase.Outcome) map[string]any {
	return map[string]any{
		"post":     o.Item,
		"approved": o.Result.Approved,
		"score":    o.Result.Details.OverallScore,
		"issues":   o.Result.IssueMessages(),
		"attempts": o.Attempts,
		"warnings": o.Warnings,
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
