package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lodge", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lodge", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	MailSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lodge", Name: "mail_sends_total", Help: "Outbound mail by kind and result."},
		[]string{"kind", "result"}, // result: ok|error
	)
	MailLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lodge", Name: "mail_send_duration_seconds",
			Help:    "SMTP delivery duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lodge", Name: "store_ops_total", Help: "Key-value store reads and writes."},
		[]string{"driver", "op", "result"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lodge", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	GeoLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lodge", Name: "geoip_lookups_total", Help: "Client IP geolocation lookups."},
		[]string{"result"}, // found|miss|error
	)
)

// Serve exposes the registry on a separate listener when addr is set.
func Serve(addr string, reg *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, MailSends, MailLatency, StoreOps, CacheEvents, GeoLookups)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveMail(kind string, err error, dur time.Duration) {
	MailSends.WithLabelValues(kind, result(err)).Inc()
	MailLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func ObserveStore(driver, op string, err error) { // op: get|put
	StoreOps.WithLabelValues(driver, op, result(err)).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveGeo(res string) { GeoLookups.WithLabelValues(res).Inc() }

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
