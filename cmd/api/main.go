package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"lodge_finder/internal/adapters/geoip"
	server "lodge_finder/internal/adapters/http_server"
	"lodge_finder/internal/adapters/mail"
	"lodge_finder/internal/adapters/observability"
	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
	"lodge_finder/internal/shared"
	"lodge_finder/internal/storage"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "lodge-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// storage
	st, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("open store failed")
	}
	defer st.Close()

	// optional IP geolocation
	var locator domain.Locator
	if cfg.GeoIPDB != "" {
		geo, err := geoip.Open(cfg.GeoIPDB)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.GeoIPDB).Msg("geoip disabled")
		} else {
			defer geo.Close()
			locator = geo
		}
	}

	// deps
	relay := app.NewRelayService(mail.New(cfg.SMTP), cfg.SMTP.To, cfg.SiteURL)
	auth, err := server.NewAuth(cfg.Admin)
	if err != nil {
		log.Fatal().Err(err).Msg("admin auth setup failed")
	}
	h := &server.Handlers{
		Q:    app.NewQueryService(st.Records, st.Records, locator, app.PolicyFor(cfg.CurrencyUKFirst)),
		B:    app.NewBookmarkService(st.Records, relay),
		A:    app.NewAdminService(st.Records, relay),
		R:    relay,
		Auth: auth,
	}

	// http
	srv := server.New(15*time.Second, cfg.TrustProxy)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)
	if cfg.StaticDir != "" {
		srv.Static(cfg.StaticDir)
	}
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           c.Handler(srv.Mux()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Bool("email", cfg.IsEmailConfigured()).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info().Msg("server stopped")
}
