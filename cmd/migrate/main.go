package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/incosense/incosense/internal/config"
	"github.com/incosense/incosense/internal/migrate"
	"github.com/incosense/incosense/internal/pkg/logger"
	"github.com/incosense/incosense/migrations"
)

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	configPath := flag.String("config", "config/config.yaml", "config file")
	listOnly := flag.Bool("list", false, "print the migrations that would run and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var src fs.FS = migrations.FS
	if *dir != "" {
		src = os.DirFS(*dir)
	}
	migs, err := migrate.Load(src)
	if err != nil {
		log.Fatal(err)
	}

	if *listOnly {
		for _, m := range migs {
			log.Println(" ", m.Version)
		}
		log.Printf("Total: %d migrations", len(migs))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	n, err := migrate.NewRunner(db, logger.Default()).Up(ctx, migs)
	if err != nil {
		log.Fatalf("migrate: %v (%d applied before failure)", err, n)
	}
	log.Printf("Migrations complete: %d applied, %d already present", n, len(migs)-n)
}
