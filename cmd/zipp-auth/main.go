package main

import (
	"context"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PIYUSH-GIRI23/zipp-clip/adapters/events"
	"github.com/PIYUSH-GIRI23/zipp-clip/adapters/store"
	"github.com/PIYUSH-GIRI23/zipp-clip/adapters/tokenizer"
	"github.com/PIYUSH-GIRI23/zipp-clip/service"
	"github.com/PIYUSH-GIRI23/zipp-clip/transport/http"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "zipp-auth").Logger()

	// The signing secret is the one fatal startup condition: without it
	// no token can be minted or verified.
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	codec, err := tokenizer.NewJWTCodec(tokenizer.Config{
		Secret:   []byte(secret),
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build token codec")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse Redis URL")
	}
	redisClient := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	historyStore := store.NewRedisStore(redisClient)
	eventPub := events.NewWatermillPublisher(publisher)
	sessions := service.NewSessionService(codec, historyStore, eventPub, log)

	router := http.SetupRouter(sessions)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":9000"
	}
	log.Info().Str("addr", addr).Msg("starting auth service")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
