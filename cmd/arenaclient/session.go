package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luciancaetano/arenanet"
	"github.com/luciancaetano/arenanet/internal/config"
	"github.com/luciancaetano/arenanet/internal/session"
	"github.com/luciancaetano/arenanet/internal/storage/sqlite"
)

func sessionCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset the persisted session",
		Long: `Inspect or reset the session kept in storage.path.

Examples:
  arenaclient session show
  ARENA_STORAGE_PATH=bot1.db arenaclient session reset`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the session id, death record and last position",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), *configFile, showSession)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget the session so the next run joins as a new player",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), *configFile, resetSession)
			},
		},
	)

	return cmd
}

func withStore(ctx context.Context, configFile string, fn func(context.Context, *session.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Read(viper.New(), configFile)
	if err != nil {
		return fmt.Errorf("%s: %w", arenanet.ErrInvalidConfig, err)
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is not set, e.g. ARENA_STORAGE_PATH=%s", arenanet.DefaultStorageFile)
	}

	kv, err := sqlite.Open(cfg.Storage.Path, zerolog.Nop())
	if err != nil {
		return fmt.Errorf("%s: %w", arenanet.ErrOpenStorage, err)
	}
	defer kv.Close()

	return fn(ctx, session.New(session.Config{KV: kv}))
}

func showSession(ctx context.Context, store *session.Store) error {
	fmt.Printf("Session:       %s\n", store.SessionID(ctx))

	if rec, ok := store.LoadDeathRecord(ctx); ok {
		fmt.Printf("Dead since:    %s\n", rec.DiedAt().Format(time.RFC3339Nano))
	} else {
		fmt.Println("Dead since:    -")
	}

	if pos, ok := store.LoadLastPosition(ctx); ok {
		fmt.Printf("Last position: (%.1f, %.1f) facing %.2f rad\n", pos.X, pos.Y, pos.Rotation)
	} else {
		fmt.Println("Last position: -")
	}
	return nil
}

func resetSession(ctx context.Context, store *session.Store) error {
	id, err := store.ResetSessionID(ctx)
	if err != nil {
		return err
	}
	if err := store.ClearDeathRecord(ctx); err != nil {
		return err
	}
	fmt.Printf("New session: %s\n", id)
	return nil
}
