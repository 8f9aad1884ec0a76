package cli

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/socdetect/common/logging"
	natsclient "github.com/telhawk-systems/socdetect/common/messaging/nats"
	"github.com/telhawk-systems/socdetect/internal/archive"
	"github.com/telhawk-systems/socdetect/internal/cache"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/evidence"
	"github.com/telhawk-systems/socdetect/internal/ingestion"
	"github.com/telhawk-systems/socdetect/internal/nats"
	"github.com/telhawk-systems/socdetect/internal/repository"
	"github.com/telhawk-systems/socdetect/internal/riskscore"
	"github.com/telhawk-systems/socdetect/internal/service"
)

// runtime holds the components wired from configuration.
type runtime struct {
	service   *service.Service
	scorer    *riskscore.Scorer
	nats      *natsclient.Client
	publisher *nats.Publisher

	closers []func()
}

// Close releases connections in reverse order of creation.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (a *app) engine() (*detection.Engine, error) {
	rules := detection.DefaultRules()
	if path := a.cfg.Detection.RulesFile; path != "" {
		rs, err := detection.LoadRuleSetFile(path)
		if err != nil {
			return nil, err
		}
		rules = rs
		a.logger.Info("loaded rule set", "path", path, "rules", rs.Len())
	}
	return detection.NewEngine(rules), nil
}

func (a *app) repository(ctx context.Context) (repository.Repository, error) {
	if a.cfg.Database.Type == "memory" {
		a.logger.Warn("using in-memory alert store; alerts are lost on exit")
		return repository.NewMemoryRepository(), nil
	}
	repo, err := repository.NewPostgresRepository(ctx, a.cfg.PostgresConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}

// buildRuntime connects the alert store and every enabled sink. When a sink
// fails, everything opened before it is closed again.
func (a *app) buildRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}
	built := false
	defer func() {
		if !built {
			rt.Close()
		}
	}()
	cfg := a.cfg

	engine, err := a.engine()
	if err != nil {
		return nil, err
	}

	repo, err := a.repository(ctx)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, repo.Close)

	adapter := ingestion.NewAdapter(repo, a.logger,
		ingestion.WithInsertDelay(cfg.Ingestion.InsertDelay),
		ingestion.WithDedupWindow(cfg.Ingestion.DedupWindow),
	)
	rt.scorer = riskscore.NewScorer(repo, a.logger,
		riskscore.WithLookback(cfg.Risk.Lookback),
		riskscore.WithRecentAlertLimit(cfg.Risk.RecentAlertLimit),
	)

	var opts []service.Option

	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { client.Close() })
		opts = append(opts, service.WithStatsCache(cache.NewStatsCache(client, cfg.Redis.StatsTTL)))
	}

	if cfg.NATS.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = cfg.NATS.Name
		client, err := natsclient.NewClient(natsCfg, a.logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := client.Drain(); err != nil {
				a.logger.Warn("failed to drain NATS connection", logging.Error(err))
			}
		})
		rt.nats = client
		rt.publisher = nats.NewPublisher(client)
		opts = append(opts, service.WithPublisher(rt.publisher))
	}

	if cfg.Archive.OpenSearch.Enabled {
		indexer, err := archive.NewOpenSearchIndexer(cfg.Archive.OpenSearch, a.logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithIndexer(indexer))
	}

	if cfg.Evidence.S3.Enabled {
		store, err := evidence.NewS3Store(ctx, cfg.Evidence.S3, a.logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithEvidenceStore(store))
	}

	rt.service = service.New(engine, repo, adapter, rt.scorer, a.logger, opts...)
	built = true
	return rt, nil
}
