package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketpulse/corelens/internal/config"
	"github.com/marketpulse/corelens/internal/feed"
	"github.com/marketpulse/corelens/internal/feedcache"
	"github.com/marketpulse/corelens/internal/httpapi"
	"github.com/marketpulse/corelens/internal/pipeline"
)

func runCmd(ctx context.Context) *cobra.Command {
	var (
		configPath      string
		symbol          string
		restBaseURL     string
		wsURL           string
		healthAddr      string
		redisAddr       string
		rateLimitPerSec float64
		rateLimitBurst  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the analysis core against a live exchange feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			rest := feed.NewRESTClient(feed.RESTConfig{
				BaseURL:         restBaseURL,
				RateLimitPerSec: rateLimitPerSec,
				RateLimitBurst:  rateLimitBurst,
				BreakerName:     "rest-ohlcv-" + symbol,
			})

			var ohlcv feed.OHLCVSource = rest
			if redisAddr != "" {
				client := redis.NewClient(&redis.Options{Addr: redisAddr})
				cache := feedcache.New(client, time.Minute)
				ohlcv = feedcache.NewCachedSource(rest, cache, symbol)
				log.Info().Str("redis_addr", redisAddr).Msg("ohlcv read-through cache enabled")
			}

			ws := feed.NewSubscriber(wsURL, cfg.WSTradesBuffer, cfg.WSReconnectBackoffSeq)
			source := feed.NewCompositeSource(ohlcv, ws)

			sup := pipeline.New(cfg, source, time.Now())
			httpSrv := httpapi.New(healthAddr, sup)

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go ws.Run(runCtx)
			go sup.Run(runCtx)
			go func() {
				if err := httpSrv.Start(); err != nil {
					log.Error().Err(err).Msg("httpapi server stopped")
				}
			}()

			log.Info().Str("symbol", symbol).Dur("interval", cfg.AnalysisInterval()).Msg("corelens running")

			for {
				select {
				case <-runCtx.Done():
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					return httpSrv.Shutdown(shutdownCtx)
				case sig := <-sup.Signals():
					log.Info().
						Str("id", sig.ID).
						Str("direction", string(sig.Direction)).
						Float64("confidence", sig.Confidence).
						Str("explanation", sig.Explanation).
						Msg("signal")
				case al := <-sup.Alerts():
					log.Warn().
						Str("id", al.ID).
						Str("type", string(al.Type)).
						Str("severity", string(al.Severity)).
						Str("message", al.Message).
						Msg("alert")
				}
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults baked in otherwise)")
	cmd.Flags().StringVar(&symbol, "symbol", "BTC-PERP", "traded symbol to analyze")
	cmd.Flags().StringVar(&restBaseURL, "rest-base-url", "https://api.exchange.example/v1", "REST base URL for OHLCV history")
	cmd.Flags().StringVar(&wsURL, "ws-url", "wss://stream.exchange.example/v1", "websocket URL for depth/trades")
	cmd.Flags().StringVar(&healthAddr, "health-addr", "127.0.0.1:9090", "address for the health/metrics HTTP server")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "optional redis address for the OHLCV read-through cache")
	cmd.Flags().Float64Var(&rateLimitPerSec, "rest-rate-limit", 5, "REST requests/sec (0 disables limiting)")
	cmd.Flags().IntVar(&rateLimitBurst, "rest-rate-burst", 5, "REST rate limiter burst size")

	return cmd
}
