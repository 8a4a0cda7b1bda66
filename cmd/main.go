package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/batchflow-backend/internal/app"
	"github.com/yungbote/batchflow-backend/internal/clients/redis"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
	"github.com/yungbote/batchflow-backend/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "batchflow: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "batchflow",
		Short:        "Assessment batch lifecycle and report emission service",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API", RunE: runServe},
		&cobra.Command{Use: "worker", Short: "Run the report issuance worker", RunE: runWorker},
		&cobra.Command{Use: "migrate", Short: "Apply the database schema", RunE: func(*cobra.Command, []string) error {
			return app.Migrate()
		}},
		newEventsCmd(),
		newTokenCmd(),
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(cmd.Context())
}

func runWorker(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Work(cmd.Context())
}

func newEventsCmd() *cobra.Command {
	var channel string
	events := &cobra.Command{Use: "events", Short: "Inspect lifecycle notifications"}
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print notifications published on the Redis channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(envOr("LOG_MODE", "development"))
			if err != nil {
				return err
			}
			defer log.Sync()
			rdb, err := redis.Dial(cmd.Context(), os.Getenv("REDIS_ADDR"))
			if err != nil {
				return err
			}
			defer rdb.Close()
			out := cmd.OutOrStdout()
			return redis.Tail(cmd.Context(), log, rdb, channel, func(ev redis.Event) {
				fmt.Fprintf(out, "%s %s %v\n", ev.At.Format(time.RFC3339), ev.Event, ev.Payload)
			})
		},
	}
	tail.Flags().StringVar(&channel, "channel", envOr("REDIS_NOTIFY_CHANNEL", redis.DefaultChannel), "Redis pub/sub channel")
	events.AddCommand(tail)
	return events
}

func newTokenCmd() *cobra.Command {
	var (
		actorID  string
		role     string
		clinicID string
		entityID string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor := audit.ActorContext{}
			var err error
			if actorID == "" {
				actor.ID = uuid.New()
			} else if actor.ID, err = uuid.Parse(actorID); err != nil {
				return fmt.Errorf("--actor: %w", err)
			}
			if actor.Role, err = audit.ParseRole(role); err != nil {
				return err
			}
			if clinicID != "" {
				if actor.ClinicID, err = uuid.Parse(clinicID); err != nil {
					return fmt.Errorf("--clinic: %w", err)
				}
			}
			if entityID != "" {
				if actor.EntityID, err = uuid.Parse(entityID); err != nil {
					return fmt.Errorf("--entity: %w", err)
				}
			}
			auth := services.NewAuthService(logger.Nop(), envOr("JWT_SECRET_KEY", "defaultsecret"), envOr("JWT_ISSUER", "batchflow"), ttl)
			token, err := auth.IssueToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id (random when empty)")
	cmd.Flags().StringVar(&role, "role", string(audit.RoleAdmin), "actor role")
	cmd.Flags().StringVar(&clinicID, "clinic", "", "clinic scope")
	cmd.Flags().StringVar(&entityID, "entity", "", "entity scope")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
