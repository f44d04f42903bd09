package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"elo-ledger/server/engine"
	"elo-ledger/server/filestore"
	"elo-ledger/server/ledger"
	"elo-ledger/server/store"
)

//
// ===== pretty printing =====
//

var (
	bold = color.New(color.Bold).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
	good = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
	cyan = color.New(color.FgCyan).SprintFunc()
)

func kindTag(k engine.EventKind) string {
	switch k {
	case engine.EventResultCommitted:
		return good(string(k))
	case engine.EventResultUndone:
		return bad(string(k))
	case engine.EventPendingChanged:
		return warn(string(k))
	default:
		return cyan(string(k))
	}
}

//
// ===== bootstrap =====
//

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if !cfg.UseColor {
		color.NoColor = true
	}

	var migrate bool
	for _, a := range os.Args[1:] {
		switch a {
		case "--migrate":
			migrate = true
		}
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, ping, closeStore, err := openStore(cfg, migrate)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()
	if migrate {
		log.Println("migrated")
		return
	}

	svc := engine.New(st, engine.Options{
		Policy:      cfg.Policy(),
		StartRating: cfg.StartRating,
		Logger:      logger,
	})
	defer svc.Close()
	go logEvents(svc.Subscribe())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      Router(svc, ping),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	section(fmt.Sprintf("elo ledger (%s backend)", cfg.StorageBackend))
	log.Printf("listening on http://localhost:%s (Ctrl+C to stop)", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("stopped")
}

// openStore picks the storage backend. The returned ping is nil for the
// file backend.
func openStore(cfg Config, migrate bool) (ledger.Store, func(context.Context) error, func(), error) {
	switch cfg.StorageBackend {
	case backendPostgres:
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		closeDB := func() { db.Close(context.Background()) }
		if cfg.AutoMigrate || migrate {
			if err := store.Migrate(context.Background(), db); err != nil {
				closeDB()
				return nil, nil, nil, err
			}
			log.Println("schema up to date")
		}
		return db, db.Ping, closeDB, nil
	default:
		if migrate {
			log.Printf("%s file backend has no schema to migrate", warn("note:"))
		}
		fs, err := filestore.New(cfg.StorageRoot)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("storage root %s", dim(fs.Root()))
		return fs, nil, func() {}, nil
	}
}

func section(title string) { fmt.Printf("\n%s %s %s\n", dim("──"), bold(title), dim("──")) }

// logEvents stands in for chart regeneration: it reports every mutation
// outside the engine's locks.
func logEvents(events <-chan engine.Event) {
	for ev := range events {
		game := ev.Game
		if game == "" {
			game = "*"
		}
		log.Printf("%s scope=%s game=%s", kindTag(ev.Kind), ev.Scope, game)
	}
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	cancel()
}
