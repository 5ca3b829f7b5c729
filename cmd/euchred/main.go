// Command euchred runs the authoritative euchre game server: HTTP command
// endpoints, a websocket event stream, a lifecycle sweeper, and optional
// snapshot persistence.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"

	"fun-euchre/euchre"
	"fun-euchre/internal/broker"
	"fun-euchre/internal/config"
	"fun-euchre/internal/gateway"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/lifecycle"
	"fun-euchre/internal/manager"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/runtime"
	"fun-euchre/internal/snapshot"
	"fun-euchre/internal/store"
)

const listenAddr = ":8080"

func main() {
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("MAIN")

	cfg, err := config.FromEnv(nil)
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}
	log.Infof("config: %s", cfg)
	if cfg.GeneratedSecret {
		log.Warnf("%s is unset; reconnect tokens will not survive a restart", config.EnvReconnectTokenSecret)
	}

	nowMs := func() int64 { return time.Now().UnixMilli() }
	lobbies := store.NewLobbyStore(nowMs, cfg.LobbyTTLMs)
	games := store.NewGameStore(nowMs, cfg.GameRetentionMs, cfg.GameTTLMs)
	sessions := store.NewSessionStore(nowMs, cfg.ReconnectGraceMs, cfg.GameRetentionMs, cfg.SessionTTLMs, backend.Logger("STOR"))
	stores := runtime.Stores{Lobbies: lobbies, Games: games, Sessions: sessions}

	var repo *snapshot.Repository
	var save func() error
	if cfg.PersistenceMode == config.PersistenceFile {
		repo = snapshot.NewRepository(cfg.PersistencePath, nowMs, backend.Logger("SNAP"))
		snap, ok, err := repo.Load()
		if err != nil {
			log.Errorf("loading snapshot: %v", err)
			os.Exit(1)
		}
		if ok {
			snapshot.Restore(snap, lobbies, games, sessions, nowMs(), cfg.ReconnectGraceMs)
			log.Infof("restored %d lobbies, %d games, %d sessions from %s",
				len(snap.LobbyRecords), len(snap.GameRecords), len(snap.SessionRecords), cfg.PersistencePath)
		}
		save = func() error { return repo.Save(lobbies, games, sessions) }
	}
	ckpt := lifecycle.NewCheckpointer(save, backend.Logger("CKPT"))

	b := broker.New(nowMs, backend.Logger("BRKR"))
	engine := euchre.NewEngine(rand.New(rand.NewSource(time.Now().UnixNano())))
	adapter := protocol.NewAdapter(engine)
	mgr := manager.New(games, adapter, ckpt.Request, backend.Logger("LANE"))
	issuer := ident.NewIssuer(cfg.TokenSecret, 0, 0, nowMs)
	dispatcher := runtime.New(stores, issuer, b, mgr, ckpt.Request, nowMs, backend.Logger("DISP"))

	sweeper := lifecycle.NewSweeper(lobbies, games, sessions, b, mgr, ckpt,
		cfg.SweepIntervalMs, nowMs, backend.Logger("SWEP"))
	go sweeper.Run()

	mux := http.NewServeMux()
	gateway.NewHTTPHandler(dispatcher, backend.Logger("HTTP")).RegisterRoutes(mux)
	gateway.NewWSHandler(dispatcher, b, issuer, backend.Logger("WSGW")).RegisterRoutes(mux)

	server := &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		log.Infof("listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}

	sweeper.Stop()
	mgr.Close()
	b.DisconnectAll()
	ckpt.Close()
	if repo != nil {
		if err := repo.Save(lobbies, games, sessions); err != nil {
			log.Errorf("final snapshot: %v", err)
		}
	}
	log.Infof("shutdown complete")
}
