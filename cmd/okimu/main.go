// cmd/okimu/main.go
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/okimu/okimu/internal/challenge"
	"github.com/okimu/okimu/internal/command"
	"github.com/okimu/okimu/internal/config"
	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/protocol"
	"github.com/okimu/okimu/internal/room"
)

func main() {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(lvl)
	}

	store := config.NewStore(
		getEnv("OKIMU_USER_BANK", "users.json"),
		getEnv("OKIMU_GUILD_BANK", "guilds.json"),
		logger,
	)
	if err := store.LoadAll(); err != nil {
		logger.Fatalf("load banks: %v", err)
	}
	if owner := os.Getenv("OKIMU_OWNER_ID"); owner != "" {
		store.UpdateUser(owner, func(u *config.UserConfig) { u.Status = config.StatusOwner })
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go store.AutoSave(ctx, config.DefaultSaveInterval)

	rdb, err := cytoid.ConnectRedis()
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, level cache disabled")
		rdb = nil
	}
	client := cytoid.NewClient(
		getEnv("CYTOID_API_URL", cytoid.DefaultBaseURL),
		"okimu (+https://github.com/okimu/okimu)",
		rdb,
		logger,
	)

	console := NewConsole(os.Stdin, os.Stdout)
	registry := room.NewRegistry(logger)
	roomDeps := room.Deps{
		Registry:   registry,
		Messenger:  console,
		Dialog:     console,
		Scores:     client,
		Identities: store,
		Log:        logger,
	}
	boss := challenge.NewHost(challenge.Deps{
		Scores:     client,
		Identities: store,
		Log:        logger,
	})
	flows := protocol.NewFlows(registry, client, console, console, roomDeps, logger)
	router := command.NewRouter(command.Deps{
		Registry:  registry,
		Flows:     flows,
		Boss:      boss,
		Provider:  client,
		Store:     store,
		Messenger: console,
		Log:       logger,
		Prefix:    getEnv("OKIMU_PREFIX", command.DefaultPrefix),
	})

	operator := models.User{
		ID:       getEnv("OKIMU_CONSOLE_USER", "console"),
		Username: "operator",
	}
	origin := models.Origin{ChannelID: "console", User: operator}

	logger.Infof("okimu up - %d user(s), %d guild(s) known; %shelp for commands",
		store.UserCount(), store.GuildCount(), getEnv("OKIMU_PREFIX", command.DefaultPrefix))

	for {
		line, err := console.NextLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.WithError(err).Error("input closed")
			}
			break
		}
		if line == "" {
			continue
		}
		router.Dispatch(ctx, origin, line)
	}

	stop()
	if err := store.SaveAll(); err != nil {
		logger.WithError(err).Error("final save failed")
	}
	logger.Info("okimu down")
}

// getEnv reads an environment variable or falls back to a default.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
