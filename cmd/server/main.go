package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/medflow/medflow-auth/access"
	"github.com/medflow/medflow-auth/auth"
	"github.com/medflow/medflow-auth/internal/audit"
	"github.com/medflow/medflow-auth/internal/config"
	"github.com/medflow/medflow-auth/internal/database"
	"github.com/medflow/medflow-auth/internal/obs"
	"github.com/medflow/medflow-auth/server"
	sessionsqlite "github.com/medflow/medflow-auth/sessions/reposqlite"
	"github.com/medflow/medflow-auth/token"
	twofactorsqlite "github.com/medflow/medflow-auth/twofactor/reposqlite"
	usersqlite "github.com/medflow/medflow-auth/users/reposqlite"
)

const purgeInterval = 10 * time.Minute

func main() {
	c := config.New()
	log := newLogger(c)
	for {
		if err := run(c, log); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run(c config.Config, log zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())

	db, err := database.Open(c.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("database.Open: %w", err)
	}
	defer db.Close()

	tokenCreator, err := token.NewCreator([]byte(c.GetTokenSecret()), c.GetTokenIssuer(), c.GetTokenAudience())
	if err != nil {
		return fmt.Errorf("token.NewCreator: %w", err)
	}

	trail := audit.New(log, audit.WithSink(audit.NewSQLiteSink(db)))

	authService, err := auth.NewService(
		auth.Repos{
			Users:      usersqlite.New(db),
			Sessions:   sessionsqlite.New(db),
			Challenges: twofactorsqlite.New(db),
		},
		access.DefaultTable(),
		auth.WithTokenCreator(tokenCreator),
		auth.WithAuditTrail(trail),
		auth.WithLogger(log),
		auth.WithSessionTTL(c.GetSessionTTL()),
		auth.WithChallengeTTL(c.GetTwoFactorTTL()),
		auth.WithChallengeAttempts(c.GetTwoFactorAttempts()),
	)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	obs.Init()

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	go purgeExpiredSessions(purgeCtx, authService, log)

	httpServer := &http.Server{
		Addr:    c.GetPort(),
		Handler: server.New(c, authService, tokenCreator, log),
	}
	go listenAndServe(httpServer, log)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// purgeExpiredSessions drops sessions past their deadline on a fixed
// cadence so the table does not grow without bound. Expiry itself never
// waits for this; stores apply it lazily on read.
func purgeExpiredSessions(ctx context.Context, authService *auth.Service, log zerolog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := authService.PurgeExpiredSessions(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("session purge failed")
				continue
			}
			if purged > 0 {
				obs.SessionsPurgedTotal.Add(float64(purged))
				log.Debug().Int("purged", purged).Msg("expired sessions removed")
			}
		}
	}
}

func listenAndServe(server *http.Server, log zerolog.Logger) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
