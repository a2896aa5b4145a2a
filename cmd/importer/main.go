package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"lodge_finder/internal/adapters/fetch"
	"lodge_finder/internal/adapters/mail"
	"lodge_finder/internal/adapters/observability"
	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
	"lodge_finder/internal/shared"
	"lodge_finder/internal/storage"
)

func main() {
	var (
		src         = flag.String("src", "", "JSON export: file path or http(s) URL")
		imagesDir   = flag.String("images", "", "directory local image paths are resolved against; empty keeps them as paths")
		embedRemote = flag.Bool("embed-remote", false, "download remote images and store them embedded")
	)
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "lodge-importer")

	if *src == "" {
		log.Fatal().Msg("-src is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("src", *src).
		Str("driver", cfg.Store.Driver).
		Int("workers", cfg.Workers).
		Bool("embed_remote", *embedRemote).
		Msg("importer starting")

	client := fetch.New(5, int64(cfg.Store.MaxBytes))
	records, err := readRecords(ctx, client, *src)
	if err != nil {
		log.Fatal().Err(err).Msg("read source failed")
	}

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store failed")
	}
	defer st.Close()

	p := &preparer{client: client, imagesDir: *imagesDir, embedRemote: *embedRemote}
	forms := p.prepareAll(ctx, records, cfg.Workers)

	admin := app.NewAdminService(st.Records, app.NewRelayService(mail.New(cfg.SMTP), cfg.SMTP.To, cfg.SiteURL))
	ok, failed := 0, 0
	// commit in input order so new ids follow the file
	for i, f := range forms {
		if f == nil {
			failed++
			continue
		}
		l, err := admin.CreateOrUpdate(ctx, *f)
		if errors.Is(err, domain.ErrNotFound) && f.ID != nil {
			// exported ids this store never had become new lodges
			log.Info().Int("record", i).Int64("export_id", *f.ID).Msg("unknown id, importing as new lodge")
			f.ID = nil
			l, err = admin.CreateOrUpdate(ctx, *f)
		}
		if err != nil {
			log.Warn().Err(err).Int("record", i).Msg("import failed")
			failed++
			continue
		}
		log.Info().Int("record", i).Int64("id", l.ID).Str("name", l.Name).Msg("import ok")
		ok++
	}
	log.Info().Int("imported", ok).Int("failed", failed).Msg("import completed")
	if failed > 0 {
		st.Close()
		os.Exit(1)
	}
}

// readRecords accepts either a bare array or {"lodges": [...]}.
func readRecords(ctx context.Context, c *fetch.Client, src string) ([]map[string]any, error) {
	var raw json.RawMessage
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if err := c.JSON(ctx, src, &raw); err != nil {
			return nil, err
		}
	} else {
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return decodeRecords(raw)
}

func decodeRecords(raw []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Lodges []map[string]any `json:"lodges"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if wrapped.Lodges == nil {
		return nil, fmt.Errorf("decode records: no lodges array")
	}
	return wrapped.Lodges, nil
}
