package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/arenanet"
	"github.com/luciancaetano/arenanet/internal/config"
	"github.com/luciancaetano/arenanet/internal/logging"
	"github.com/luciancaetano/arenanet/ws"
)

const (
	botTick      = time.Second / 60
	botFireEvery = 400 * time.Millisecond
	botRadius    = 80.0
)

var errGaveUp = errors.New("gave up reconnecting")

func runCmd(configFile *string) *cobra.Command {
	var (
		join bool
		bot  bool
	)

	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to an arena server as a headless player",
		Long: `Connect to an arena server and stay connected until interrupted.

Examples:
  arenaclient run --server ws://localhost:8080/ws
  arenaclient run --join --bot
  ARENA_STORAGE_PATH=bot1.db arenaclient run --bot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *configFile)
			if err != nil {
				return fmt.Errorf("%s: %w", arenanet.ErrInvalidConfig, err)
			}
			return runClient(cmd.Context(), cfg, join, bot)
		},
	}

	cmd.Flags().String("server", "", fmt.Sprintf("Arena server URL, e.g. %s", arenanet.DefaultServerURL))
	cmd.Flags().String("storage", "", "Session database file (default in memory)")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&join, "join", false, "Join the match lobby once the player is placed")
	cmd.Flags().BoolVar(&bot, "bot", false, "Walk in circles and keep shooting")

	_ = v.BindPFlag("server.url", cmd.Flags().Lookup("server"))
	_ = v.BindPFlag("storage.path", cmd.Flags().Lookup("storage"))
	_ = v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))

	return cmd
}

func runClient(parent context.Context, cfg config.Config, join, bot bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	gaveUp := make(chan struct{}, 1)
	client, err := ws.NewClient(ctx, ws.Config{
		ServerURL:   cfg.Server.URL,
		StoragePath: cfg.Storage.Path,
		Reconnect: ws.ReconnectPolicy{
			BaseDelay:    cfg.Reconnect.BaseDelay,
			GrowthFactor: cfg.Reconnect.GrowthFactor,
			MaxDelay:     cfg.Reconnect.MaxDelay,
			MaxAttempts:  cfg.Reconnect.MaxAttempts,
		},
		RateLimit: &ws.RateLimitConfig{
			MessagesPerSecond: rate.Limit(cfg.Position.Rate),
			Burst:             cfg.Position.Burst,
			Enabled:           cfg.Position.Rate > 0,
		},
		Handlers: logHandlers(log),
		Logger:   log,
		OnConnectionChange: func(ev arenanet.ConnectionEvent) {
			log.Info().Str("from", ev.Old.String()).Str("to", ev.New.String()).Int("attempt", ev.Attempt).Msg("Connection state changed")
			if ev.New == ws.GaveUp {
				select {
				case gaveUp <- struct{}{}:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}()

	log.Info().Str("session_id", client.SessionID()).Msg("Session ready")

	ticker := time.NewTicker(botTick)
	defer ticker.Stop()

	var (
		joined   bool
		started  = time.Now()
		lastShot time.Time
	)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		case <-gaveUp:
			return errGaveUp
		case now := <-ticker.C:
			if join && !joined && client.State().CanJoin() {
				joined = client.JoinMatch()
			}
			if bot {
				lastShot = botStep(client, now, started, lastShot)
			}
		}
	}
}

// botStep walks around the last known position and presses the trigger
// every botFireEvery. It returns the time of the last press.
func botStep(client arenanet.GameClient, now, started, lastShot time.Time) time.Time {
	st := client.State()
	if !st.CanAct() {
		return lastShot
	}

	angle := now.Sub(started).Seconds()
	center := st.LastKnownPosition
	client.SendPosition(arenanet.Position{
		X:        center.X + botRadius*math.Cos(angle),
		Y:        center.Y + botRadius*math.Sin(angle),
		Rotation: angle + math.Pi/2,
	})

	if now.Sub(lastShot) < botFireEvery {
		return lastShot
	}
	client.Fire(now, arenanet.Trigger{Holding: true, NewPress: true, PressedAt: now}, angle)
	return now
}

func logHandlers(log zerolog.Logger) arenanet.Handlers {
	return arenanet.Handlers{
		SessionAck: func(m arenanet.SessionAck) {
			log.Info().Str("player_id", m.PlayerID).Msg("Session acknowledged")
		},
		PlayerInit: func(m arenanet.PlayerInit) {
			log.Info().Str("player_id", m.PlayerID).Int("health", m.Health).Str("weapon", m.Weapon).Bool("dead", m.IsDead).Msg("Player initialized")
		},
		PlayerDeath: func(m arenanet.PlayerDeath) {
			log.Info().Str("player_id", m.PlayerID).Msg("Player died")
		},
		PlayerRespawn: func(m arenanet.PlayerRespawn) {
			log.Info().Str("player_id", m.PlayerID).Msg("Player respawned")
		},
		WeaponPickup: func(m arenanet.WeaponPickup) {
			log.Info().Str("player_id", m.PlayerID).Str("weapon", m.Weapon).Msg("Weapon picked up")
		},
		LobbyUpdate: func(m arenanet.LobbyUpdate) {
			log.Info().Strs("players", m.Players).Msg("Lobby updated")
		},
		MatchStarted: func(arenanet.MatchStarted) {
			log.Info().Msg("Match started")
		},
		PlayerDisconnect: func(m arenanet.PlayerDisconnect) {
			log.Debug().Str("player_id", m.PlayerID).Msg("Player disconnected")
		},
	}
}
