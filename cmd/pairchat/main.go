package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/app"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/backend/accounts"
	"github.com/PaulBabatuyi/pairchat/internal/backend/memory"
	"github.com/PaulBabatuyi/pairchat/internal/backend/mongostore"
	"github.com/PaulBabatuyi/pairchat/internal/backend/redisstore"
	"github.com/PaulBabatuyi/pairchat/internal/config"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/logger"
	"github.com/PaulBabatuyi/pairchat/internal/ratelimit"
	"github.com/PaulBabatuyi/pairchat/internal/ui/term"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("pairchat", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init("pairchat", cfg.Debug)

	// Ctrl-C and SIGTERM end the loop; teardown runs after it stops
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, cleanup, err := openBackends(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("failed to open backend")
	}
	defer cleanup()

	loop := eventloop.New()
	ui := term.New(os.Stdout)
	client := app.New(loop, backends, ui, app.Options{Policy: cfg.Policy()})
	sh := newShell(client, ui, os.Stdout, 10*time.Second)

	loop.Post(client.Start)
	if cfg.SessionToken != "" {
		loop.Post(func() {
			rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := client.Controller().Resume(rctx, cfg.SessionToken); err != nil {
				log.Warn().Err(err).Msg("resume session")
			}
		})
	}

	// resuming a stopped job counts as coming back to the foreground
	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)
	defer signal.Stop(cont)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cont:
				loop.Post(func() { client.Controller().Foreground(ctx) })
			}
		}
	}()

	go readInput(ctx, os.Stdin, loop, sh, stop)

	log.Info().Str("backend", cfg.Backend).Msg("client started")
	_ = loop.Run(ctx)

	// the loop has stopped, so this goroutine is the only one left touching
	// client state
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Close(closeCtx)
	log.Info().Msg("client stopped")
}

// readInput hands every line to the shell on the loop and stops the client
// on /quit or end of input.
func readInput(ctx context.Context, r io.Reader, loop *eventloop.Loop, sh *shell, stop func()) {
	defer stop()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		quit := false
		if err := loop.Call(ctx, func() { quit = sh.run(ctx, line) }); err != nil {
			return
		}
		if quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read input")
	}
}

func jwtManager(cfg *config.Config) *auth.JWTManager {
	// a key set allows token rotation; otherwise fall back to the single secret
	if len(cfg.Auth.Keys) > 0 {
		return auth.NewJWTManagerFromKeys(cfg.Auth.Keys, cfg.Auth.ActiveKid, cfg.Auth.TokenTTL)
	}
	return auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
}

func openBackends(ctx context.Context, cfg *config.Config) (app.Backends, func(), error) {
	limiter := ratelimit.NewLimiterStore(cfg.Auth.SignInRatePerMinute, cfg.Auth.SignInBurst, time.Minute)
	opts := accounts.Options{MinEntropyBits: cfg.Auth.MinEntropyBits, Limiter: limiter}
	tokens := jwtManager(cfg)

	if cfg.Backend != config.BackendRemote {
		store := memory.New()
		return app.Backends{
			Accounts:  accounts.NewService(store, tokens, opts),
			Profiles:  store,
			Documents: store,
		}, limiter.Stop, nil
	}

	mc, err := mongostore.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		limiter.Stop()
		return app.Backends{}, nil, err
	}
	if err := mc.CreateIndexes(ctx); err != nil {
		_ = mc.Close(context.Background())
		limiter.Stop()
		return app.Backends{}, nil, fmt.Errorf("create indexes: %w", err)
	}
	rs, err := redisstore.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = mc.Close(context.Background())
		limiter.Stop()
		return app.Backends{}, nil, fmt.Errorf("open redis: %w", err)
	}

	cleanup := func() {
		_ = rs.Close()
		_ = mc.Close(context.Background())
		limiter.Stop()
	}
	return app.Backends{
		Accounts:  accounts.NewService(mongostore.NewUsersStore(mc.UsersCollection()), tokens, opts),
		Profiles:  rs,
		Documents: mongostore.NewDocumentStore(mc),
	}, cleanup, nil
}
