package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"coursechat/internal/config"
	"coursechat/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

func init() {
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd.Context())
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's exchanges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(cmd.Context(), args[0])
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its exchanges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd.Context(), args[0])
		},
	})
	rootCmd.AddCommand(sessionsCmd)
}

// openSessionStore connects straight to PostgreSQL. Session management
// needs no model access, so the full application is not initialized.
func openSessionStore(ctx context.Context) (*session.Store, *pgxpool.Pool, error) {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return session.New(session.NewQueries(pool), pool, logger), pool, nil
}

func runSessionsList(ctx context.Context) error {
	store, pool, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessions, err := store.List(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	for _, s := range sessions {
		fmt.Printf("%s  exchanges=%-3d  created %s  updated %s\n",
			s.ID, s.ExchangeCount, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	}
	return nil
}

func runSessionsShow(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}

	store, pool, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	s, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}

	exchanges, err := store.History(ctx, id, session.MaxWindow)
	if err != nil {
		return fmt.Errorf("getting history: %w", err)
	}

	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("Created: %s\n", formatTime(s.CreatedAt))
	fmt.Printf("Exchanges: %d\n", s.ExchangeCount)
	fmt.Println()

	for _, ex := range exchanges {
		fmt.Printf("You> %s\n", ex.Query)
		fmt.Printf("Bot> %s\n", ex.Answer)
		fmt.Println()
	}
	return nil
}

func runSessionsDelete(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}

	store, pool, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

// formatTime renders a timestamp relative to now for recent times.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
