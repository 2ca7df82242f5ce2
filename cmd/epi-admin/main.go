// Command epi-admin is a terminal admin client for the Solution EPI backend.
// It drives schema-declared models through the form, table, transfer and
// generation engines: list records, create and edit them interactively,
// export and import datasets, and pre-fill records from a prompt.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	epiadmin "github.com/solutionEPI/epi-admin"
	"github.com/solutionEPI/epi-admin/internal/config"
	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/generate"
)

const usage = `Usage: epi-admin [-config path] <command> [arguments]

Commands:
  list <model> [-page n] [-renderer name]   show one page of records
  show <model> <id>                         print a record as JSON
  new <model> [-prompt text]                create a record interactively
  edit <model> <id>                         edit a record interactively
  delete <model> <id>                       delete a record (with confirmation)
  export <model> [-format csv|json] [-output path]
  import <model> <file> [-format csv|json]
  generate <model> -prompt text             print AI-suggested values as JSON
`

func main() {
	configPath := flag.String("config", "", "config file path (default epi-admin.yml)")
	verbose := flag.Bool("verbose", false, "log engine activity to stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("epi-admin: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("epi-admin: logger: %v", err)
		}
		defer dev.Sync()
		logger = dev
	}

	engine, tokens, err := buildEngine(cfg, logger)
	if err != nil {
		log.Fatalf("epi-admin: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	app := &app{engine: engine, cfg: cfg, tokens: tokens}
	if err := app.run(ctx, flag.Args()); err != nil {
		log.Fatalf("epi-admin: %v", err)
	}
}

func buildEngine(cfg *config.AppConfig, logger *zap.Logger) (*epiadmin.Engine, *fileTokenStore, error) {
	tokens, err := newFileTokenStore(cfg.TokenFile)
	if err != nil {
		return nil, nil, err
	}

	opts := []epiadmin.Option{
		epiadmin.WithLogger(logger),
		epiadmin.WithTokenStore(tokens),
	}
	if cfg.RedisURL != "" {
		store, err := cache.NewRedisStore(cfg.RedisURL, 5*time.Minute)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, epiadmin.WithCacheStore(store))
	}
	if cfg.AI.Provider != "" {
		opts = append(opts, epiadmin.WithAIProvider(&generate.Provider{
			Type:     cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Endpoint: cfg.AI.Endpoint,
			Model:    cfg.AI.Model,
		}))
	}
	engine, err := epiadmin.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, tokens, nil
}
