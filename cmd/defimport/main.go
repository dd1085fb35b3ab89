// Command defimport validates definition files and stores them in the SQLite
// definition table used by the sqlite session backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/config"
	"github.com/MJE43/mapgame-session-go/internal/game"
	"github.com/MJE43/mapgame-session-go/internal/store"
)

func main() {
	var cfg struct {
		SQLitePath string        `env:"MAPGAME_SQLITE_PATH" envDefault:"data/mapgame.db"`
		Timeout    time.Duration `env:"MAPGAME_IMPORT_TIMEOUT" envDefault:"1m"`
	}
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	dbPath := flag.String("db", cfg.SQLitePath, "path to sqlite database (default: MAPGAME_SQLITE_PATH or data/mapgame.db)")
	checkOnly := flag.Bool("check", false, "validate files without writing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: defimport [-db path] [-check] file...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	defs := make([]*game.Definition, 0, flag.NArg())
	for _, path := range flag.Args() {
		def, err := game.LoadFile(path)
		if err != nil {
			log.Fatalf("%s: %v", path, err)
		}
		defs = append(defs, def)
		log.Printf("definition_valid file=%s id=%s prompts=%d", path, def.ID, def.PromptCount())
	}
	if *checkOnly {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	db, err := store.NewSQLite(*dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer db.Close()

	for _, def := range defs {
		if err := db.PutDefinition(ctx, def); err != nil {
			log.Fatalf("store %s: %v", def.ID, err)
		}
	}
	log.Printf("definitions_imported count=%d db=%s", len(defs), *dbPath)
}
