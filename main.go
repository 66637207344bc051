package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"formbot/config"
	"formbot/handler"
	"formbot/repo"
	"formbot/review"
	"formbot/session"
	"formbot/settings"
)

func main() {
	if err := godotenv.Load("local.env"); err == nil {
		log.Info().Msg("loaded environment from local.env")
	}

	dev := os.Getenv("ENV") == "DEV"
	if dev {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Info().Msg("running in development mode: validators force-accept, invariant violations panic")
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	botToken := os.Getenv("TOKEN")
	if botToken == "" {
		log.Fatal().Msg("TOKEN environment variable not set")
	}

	admins, err := parseAdmins(os.Getenv("ADMINS"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ADMINS environment variable")
	}

	cfg := config.Load(os.Getenv("CONFIG"))

	settingsPath := os.Getenv("SETTINGS_JSON")
	if settingsPath == "" {
		settingsPath = "settings.json"
	}
	store, err := settings.New(settingsPath, admins, len(cfg.Templates))
	if err != nil {
		log.Fatal().Err(err).Msg("error creating settings store")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	archive, err := repo.InitializeFirebase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing Firebase")
	}
	if archive == nil {
		log.Info().Msg("suggestion archiving disabled, FIREBASE_* not set")
	}

	sessions := session.NewManager(cfg.Templates, dev, dev)
	reviews := review.NewEngine(cfg.Templates)

	h, err := handler.New(sessions, reviews, store, cfg, archiver(archive))
	if err != nil {
		log.Fatal().Err(err).Msg("error building handler registry")
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(h.Handle),
	}

	b, err := bot.New(botToken, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating bot")
	}
	h.Bind(b)

	log.Info().Int("templates", len(cfg.Templates)).Int("admins", len(admins)).Msg("bot is starting")
	b.Start(ctx)
	log.Info().Msg("bot stopped")
}

// archiver keeps a typed nil from reaching the handler's interface
// field when archiving is disabled.
func archiver(fc *repo.FirebaseConnector) repo.Archiver {
	if fc == nil {
		return nil
	}
	return fc
}

func parseAdmins(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errors.New("ADMINS must list at least one user id")
	}
	return out, nil
}
