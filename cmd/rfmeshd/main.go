package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/config"
	"github.com/rfmesh/rfmesh/internal/store"
	"github.com/rfmesh/rfmesh/internal/transport/wslink"
	"github.com/rfmesh/rfmesh/node"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "rfmeshd",
	Short: "rfmesh node daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfg)
	},
}

func init() {
	config.RegisterFlags(rootCmd, &cfg)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("[rfmeshd] fatal error")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return err
	}

	db, err := store.Open(cfg.DataDir + "/state")
	if err != nil {
		log.Fatal().Err(err).Msg("[rfmeshd] failed to open state store")
	}
	defer db.Close()

	kr, err := keyring.Open(keyring.Config{
		ServiceName:      "rfmesh",
		FileDir:          cfg.DataDir + "/keyring",
		FilePasswordFunc: keyring.FixedStringPrompt("rfmesh"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("[rfmeshd] failed to open keyring")
	}

	n, err := node.New(node.Deps{
		DB:              db,
		Keyring:         kr,
		Dialer:          wslink.Dialer,
		Nickname:        cfg.Nickname,
		SessionLifetime: cfg.SessionLifetime,
		RouteExpiry:     cfg.RouteExpiry,
		SeenCacheMax:    cfg.SeenCacheMax,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("[rfmeshd] failed to initialize node")
	}
	defer n.Close()

	log.Info().Str("fingerprint", string(n.Fingerprint())).Str("nickname", n.Nickname()).Msg("[rfmeshd] node ready")

	n.OnMessageDelivered(func(from common.Fingerprint, text string) {
		log.Info().Str("from", from.Short()).Str("text", text).Msg("[rfmeshd] message received")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/radio", func(w http.ResponseWriter, r *http.Request) {
		link, err := wslink.Accept(w, r)
		if err != nil {
			log.Warn().Err(err).Msg("[rfmeshd] failed to accept incoming radio link")
			return
		}
		n.RegisterIncomingLink(link)
	})

	radioSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("[rfmeshd] radio transport listening")
		if err := radioSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[rfmeshd] radio transport server error")
			stop()
		}
	}()

	adminSrv := &http.Server{Addr: cfg.AdminAddr, Handler: n.AdminHandler()}
	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("[rfmeshd] admin status surface listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[rfmeshd] admin server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("[rfmeshd] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = radioSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)

	log.Info().Msg("[rfmeshd] shutdown complete")
	return nil
}
