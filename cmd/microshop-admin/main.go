package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/microshop-ui/config"
	redisadapter "github.com/target/microshop-ui/internal/adapters/redis"
	"github.com/target/microshop-ui/internal/bootstrap"
	"github.com/target/microshop-ui/internal/data"
	"github.com/target/microshop-ui/internal/ports"
	"github.com/target/microshop-ui/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
	defaultAuditLimit       = 50
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run audit database migrations",
			run:         runMigrations,
		},
		"audit-list": {
			name:        "audit-list",
			description: "List recent session transitions for a browser client",
			run:         runAuditList,
		},
		"audit-prune": {
			name:        "audit-prune",
			description: "Delete session transitions older than a cutoff",
			run:         runAuditPrune,
		},
		"revoke-tokens": {
			name:        "revoke-tokens",
			description: "Delete the stored token set of a browser client",
			run:         runRevokeTokens,
		},
		"clear-catalog-cache": {
			name:        "clear-catalog-cache",
			description: "Drop the cached product list",
			run:         runClearCatalogCache,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: microshop-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	for _, name := range []string{"migrate", "audit-list", "audit-prune", "revoke-tokens", "clear-catalog-cache"} {
		c := cmds[name]
		if err := writef(w, "  %-24s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type auditListOptions struct {
	ClientID string
	Limit    int
	JSON     bool
}

type auditPruneOptions struct {
	OlderThan time.Duration
	Yes       bool
}

type clientOptions struct {
	ClientID string
	Yes      bool
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return migrateErr
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runAuditList(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditListFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		events, listErr := data.NewAuthEventRepo(db).ListByClient(ctx, opts.ClientID, opts.Limit)
		if listErr != nil {
			return fmt.Errorf("list audit events: %w", listErr)
		}
		if opts.JSON {
			return printAuditEventsJSON(cmdCtx.Out, events)
		}
		return printAuditEvents(cmdCtx.Out, opts.ClientID, events)
	})
}

func runAuditPrune(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditPruneFlags(args)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-opts.OlderThan).UTC()
	if !opts.Yes {
		prompt := fmt.Sprintf("About to delete session transitions recorded before %s.\n", cutoff.Format(time.RFC3339))
		if confirmErr := confirmAction(cmdCtx, prompt); confirmErr != nil {
			return confirmErr
		}
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		removed, pruneErr := data.NewAuthEventRepo(db).Prune(ctx, cutoff)
		if pruneErr != nil {
			return fmt.Errorf("prune audit events: %w", pruneErr)
		}
		return writef(cmdCtx.Out, "Deleted %d session transition(s).\n", removed)
	})
}

func runRevokeTokens(cmdCtx *commandContext, args []string) error {
	opts, err := parseClientFlags("revoke-tokens", args)
	if err != nil {
		return err
	}

	if !opts.Yes {
		prompt := fmt.Sprintf("About to sign out client %s.\n", opts.ClientID)
		if confirmErr := confirmAction(cmdCtx, prompt); confirmErr != nil {
			return confirmErr
		}
	}

	return withRedis(cmdCtx, func(ctx context.Context, client redis.UniversalClient) error {
		store := redisadapter.NewTokenStore(client, cmdCtx.Config.Auth.TokenTTL)
		if delErr := store.Delete(ctx, opts.ClientID); delErr != nil {
			return fmt.Errorf("delete tokens: %w", delErr)
		}
		return writef(cmdCtx.Out, "Tokens for client %s deleted. The next page load starts anonymous.\n", opts.ClientID)
	})
}

func runClearCatalogCache(cmdCtx *commandContext, _ []string) error {
	return withRedis(cmdCtx, func(ctx context.Context, client redis.UniversalClient) error {
		if delErr := data.NewRedisCacheRepo(client).Delete(ctx, service.CatalogCacheKey); delErr != nil {
			return fmt.Errorf("clear catalog cache: %w", delErr)
		}
		return writeln(cmdCtx.Out, "Catalog cache cleared.")
	})
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseAuditListFlags(args []string) (auditListOptions, error) {
	fs := flag.NewFlagSet("audit-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := auditListOptions{}
	fs.StringVar(&opts.ClientID, "client", "", "Browser client id (the microshop_client cookie)")
	fs.IntVar(&opts.Limit, "limit", defaultAuditLimit, "Maximum number of transitions to show")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return auditListOptions{}, err
	}

	id, err := normalizeClientID(opts.ClientID)
	if err != nil {
		return auditListOptions{}, err
	}
	opts.ClientID = id

	if opts.Limit <= 0 {
		return auditListOptions{}, errors.New("--limit must be greater than zero")
	}

	return opts, nil
}

func parseAuditPruneFlags(args []string) (auditPruneOptions, error) {
	fs := flag.NewFlagSet("audit-prune", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := auditPruneOptions{}
	fs.DurationVar(&opts.OlderThan, "older-than", 0, "Delete transitions older than this duration (e.g. 720h)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return auditPruneOptions{}, err
	}

	if opts.OlderThan <= 0 {
		return auditPruneOptions{}, errors.New("--older-than must be greater than zero")
	}

	return opts, nil
}

func parseClientFlags(name string, args []string) (clientOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := clientOptions{}
	fs.StringVar(&opts.ClientID, "client", "", "Browser client id (the microshop_client cookie)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clientOptions{}, err
	}

	id, err := normalizeClientID(opts.ClientID)
	if err != nil {
		return clientOptions{}, err
	}
	opts.ClientID = id

	return opts, nil
}

// normalizeClientID requires a UUID, the only shape the client cookie ever holds.
func normalizeClientID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("--client is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("--client must be a UUID: %w", err)
	}
	return id.String(), nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, _, err := connectInfraWithOptions(ctx, &connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, nil); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func withRedis(cmdCtx *commandContext, f func(context.Context, redis.UniversalClient) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
	defer cancel()

	_, client, err := connectInfraWithOptions(ctx, &connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(nil, client); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	return f(ctx, client)
}

func printAuditEvents(w io.Writer, clientID string, events []ports.AuthEvent) error {
	if len(events) == 0 {
		return writef(w, "No session transitions recorded for client %s.\n", clientID)
	}

	if err := writef(w, "Session transitions for client %s (newest first):\n\n", clientID); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "OCCURRED\tFROM\tTO\tAUTHENTICATED\tUSER\tROLES"); err != nil {
		return err
	}
	for _, ev := range events {
		user := ev.Username
		if user == "" {
			user = "-"
		}
		roles := strings.Join(ev.Roles, ",")
		if roles == "" {
			roles = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			ev.OccurredAt.UTC().Format(time.RFC3339),
			ev.FromState,
			ev.ToState,
			ev.Authenticated,
			user,
			roles,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type auditEventJSON struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	FromState     string    `json:"from_state"`
	ToState       string    `json:"to_state"`
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func printAuditEventsJSON(w io.Writer, events []ports.AuthEvent) error {
	out := make([]auditEventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventJSON(ev))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func confirmAction(cmdCtx *commandContext, prompt string) error {
	if err := write(cmdCtx.Out, prompt); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	if err := write(cmdCtx.Out, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	reader := bufio.NewReader(cmdCtx.In)
	resp, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		if writeErr := writef(cmdCtx.Out, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
