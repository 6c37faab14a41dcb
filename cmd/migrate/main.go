package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"atelier.dev/internal/app"
	"atelier.dev/internal/config"
	"atelier.dev/internal/migrate"
	"atelier.dev/internal/obs"
)

func main() {
	log.SetFlags(0)
	var (
		configPath = flag.String("config", "", "Path to a YAML config file")
		dir        = flag.String("dir", "", "Read migrations from <dir>/sql and seeds from <dir>/seeds instead of the bundled schema")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [-config file] [-dir path] up|down|seed|status")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatalf("missing DSN: set %s_DATABASE_DSN", config.EnvPrefix)
	}
	logger, err := obs.InitLogger(app.LogConfig(cfg))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	var opts []migrate.Option
	if *dir != "" {
		opts = append(opts, migrate.WithSource(os.DirFS(*dir), "sql", "seeds"))
	}
	mgr := migrate.NewManager(db, opts...)

	switch flag.Arg(0) {
	case "up":
		var n int
		n, err = mgr.Up(ctx)
		if err == nil {
			fmt.Printf("applied %d migration(s)\n", n)
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to roll back")
			err = nil
		} else if err == nil {
			fmt.Printf("rolled back %s\n", name)
		}
	case "seed":
		var n int
		n, err = mgr.Seed(ctx)
		if err == nil {
			fmt.Printf("applied %d seed(s)\n", n)
		}
	case "status":
		var history, pending []string
		history, err = mgr.Status(ctx)
		if err == nil {
			pending, err = mgr.Pending(ctx)
		}
		if err == nil {
			for _, item := range history {
				fmt.Println("applied ", item)
			}
			for _, item := range pending {
				fmt.Println("pending ", item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}
