package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/whaletx/internal/chain/explorer"
	"github.com/whalewatch/whaletx/internal/chain/rpc"
	"github.com/whalewatch/whaletx/internal/classify"
	"github.com/whalewatch/whaletx/internal/config"
	"github.com/whalewatch/whaletx/internal/decode"
	"github.com/whalewatch/whaletx/internal/dedup"
	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/fetch"
	"github.com/whalewatch/whaletx/internal/labels"
	"github.com/whalewatch/whaletx/internal/pipeline"
	"github.com/whalewatch/whaletx/internal/ratelimit"
	"github.com/whalewatch/whaletx/internal/store/postgres"
	redisstore "github.com/whalewatch/whaletx/internal/store/redis"
	"github.com/whalewatch/whaletx/internal/tracing"
)

const (
	defaultProviderRPS   = 10
	defaultProviderBurst = 5
)

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	providers, err := config.LoadProviders(cfg.Providers.File)
	if err != nil {
		logger.Error("failed to load providers", "error", err)
		os.Exit(1)
	}

	logger.Info("starting whaletx classifier",
		"chains", len(providers),
		"workers", cfg.Pipeline.Workers,
		"required_confidence", cfg.Pipeline.RequiredConfidence,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "whaletx-classifier", cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var publisher pipeline.ResultPublisher
	if cfg.Redis.URL != "" {
		pub, err := redisstore.NewPublisher(cfg.Redis.URL, cfg.Redis.Stream)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
	}

	limiters := ratelimit.NewRegistry(defaultProviderRPS, defaultProviderBurst)
	fetcher := buildFetcher(cfg, providers, limiters, logger)

	pairs := decode.NewPairRegistry(4096, time.Hour)
	resolver := labels.NewResolver(
		labelProvider(cfg, logger),
		cfg.Labels.CacheCap,
		cfg.Labels.CacheTTL,
		logger,
	)

	whaleTxRepo := postgres.NewWhaleTxRepo(db)
	resultRepo := postgres.NewResultRepo(db)

	pipe := pipeline.New(
		pipeline.Config{
			Workers:            cfg.Pipeline.Workers,
			QueueSize:          cfg.Pipeline.QueueSize,
			RequiredConfidence: cfg.Pipeline.RequiredConfidence,
		},
		fetcher,
		decode.NewDecoder(logger),
		classify.NewSwapClassifier(pairs, logger),
		resolver,
		classify.NewRoleResolver(),
		classify.NewAggregator(classify.DefaultSourceWeights()),
		resultRepo,
		whaleTxRepo,
		publisher,
		logger,
	)

	detector := dedup.NewDetector(logger,
		dedup.WithWindow(cfg.Dedup.Window),
		dedup.WithValueTolerance(cfg.Dedup.RelTolerance, decimal.NewFromInt(50)),
		dedup.WithSafeguardCeiling(decimal.NewFromInt(cfg.Dedup.SafeguardCeiling)),
	)
	sweeper := pipeline.NewSweeper(whaleTxRepo, detector, cfg.Dedup.SweepInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe.Run(gCtx) })
	g.Go(func() error { return sweeper.Run(gCtx) })
	g.Go(func() error { return serveHTTP(gCtx, cfg.Server.HealthPort, pipe, logger) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("classifier stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("classifier shut down")
}

func buildFetcher(cfg *config.Config, endpoints map[model.Chain][]config.ProviderEndpoint, limiters *ratelimit.Registry, logger *slog.Logger) *fetch.Fetcher {
	providers := make(map[model.Chain][]fetch.ReceiptProvider, len(endpoints))
	for chain, list := range endpoints {
		for _, ep := range list {
			if ep.RatePerSec > 0 {
				burst := ep.Burst
				if burst <= 0 {
					burst = defaultProviderBurst
				}
				limiters.Configure(ep.Name, ep.RatePerSec, burst)
			}
			switch ep.Kind {
			case config.ProviderKindExplorer:
				providers[chain] = append(providers[chain],
					explorer.NewClient(ep.Name, ep.URL, ep.Key, logger))
			default:
				providers[chain] = append(providers[chain],
					rpc.NewClient(ep.Name, ep.URL, cfg.Pipeline.ProviderCallTimeout, logger))
			}
		}
	}
	return fetch.New(providers, limiters, logger,
		fetch.WithCallTimeout(cfg.Pipeline.ProviderCallTimeout),
	)
}

// labelProvider returns the configured label service client, or a stub that
// knows nothing when none is configured. The rule engine tolerates absent
// roles, so running without a label service only lowers confidence.
func labelProvider(cfg *config.Config, logger *slog.Logger) labels.Provider {
	if cfg.Labels.BaseURL == "" {
		logger.Warn("no label provider configured, address roles disabled")
		return noRoles{}
	}
	return labels.NewHTTPProvider(cfg.Labels.Source, cfg.Labels.BaseURL, cfg.Labels.APIKey, logger)
}

type noRoles struct{}

func (noRoles) LookupRole(context.Context, model.Chain, string) (*model.AddressRole, error) {
	return nil, nil
}

type classifyRequest struct {
	TxHash       string `json:"tx_hash"`
	Chain        string `json:"chain"`
	TokenSymbol  string `json:"token_symbol"`
	WhaleAddress string `json:"whale_address"`
	USDValue     string `json:"usd_value"`
	Timestamp    *int64 `json:"timestamp,omitempty"` // unix seconds
}

func serveHTTP(ctx context.Context, port int, pipe *pipeline.Pipeline, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snapshot := pipe.Health().Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if snapshot.Status == string(pipeline.HealthStatusUnhealthy) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(snapshot)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/classify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		task, err := taskFromRequest(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := pipe.Submit(r.Context(), task); err != nil {
			http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("http server listening", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func taskFromRequest(req classifyRequest) (pipeline.Task, error) {
	if req.TxHash == "" {
		return pipeline.Task{}, errors.New("tx_hash is required")
	}
	chain, err := model.ParseChain(req.Chain)
	if err != nil {
		return pipeline.Task{}, err
	}
	usd := decimal.Zero
	if req.USDValue != "" {
		usd, err = decimal.NewFromString(req.USDValue)
		if err != nil {
			return pipeline.Task{}, fmt.Errorf("malformed usd_value: %w", err)
		}
	}
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = time.Unix(*req.Timestamp, 0).UTC()
	}
	return pipeline.Task{
		TxHash:       req.TxHash,
		Chain:        chain,
		TokenSymbol:  req.TokenSymbol,
		WhaleAddress: req.WhaleAddress,
		USDValue:     usd,
		Timestamp:    ts,
	}, nil
}
