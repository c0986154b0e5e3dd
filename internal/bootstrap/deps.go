// Package bootstrap wires infrastructure, adapters and services.
package bootstrap

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vinodvk00/one-box-sub001/adapter/out/llm"
	"github.com/vinodvk00/one-box-sub001/adapter/out/persistence"
	"github.com/vinodvk00/one-box-sub001/adapter/out/provider"
	"github.com/vinodvk00/one-box-sub001/adapter/out/searchidx"
	"github.com/vinodvk00/one-box-sub001/config"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/core/service/account"
	"github.com/vinodvk00/one-box-sub001/core/service/auth"
	"github.com/vinodvk00/one-box-sub001/core/service/classify"
	"github.com/vinodvk00/one-box-sub001/core/service/search"
	syncsvc "github.com/vinodvk00/one-box-sub001/core/service/sync"
	"github.com/vinodvk00/one-box-sub001/infra/database"
	"github.com/vinodvk00/one-box-sub001/pkg/cache"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// Dependencies holds every wired component of the pipeline.
type Dependencies struct {
	Config  *config.Config
	DB      *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	AccountRepo    *persistence.AccountAdapter
	CredentialRepo *persistence.CredentialAdapter
	MessageRepo    *persistence.MessageAdapter

	// Search index
	SearchIndex *searchidx.MongoIndex

	// Providers
	GmailProvider   *provider.GmailProvider
	ImapProvider    *provider.ImapProvider
	ProviderFactory *provider.Factory

	// Classifier
	Classifier *llm.OpenAIClassifier

	// Services
	CredentialGate *auth.CredentialGate
	Fetcher        *syncsvc.Fetcher
	SyncScheduler  *syncsvc.Scheduler
	Engine         *classify.Engine
	BatchScheduler *classify.BatchScheduler
	SearchService  *search.Service
	AccountManager *account.Manager
}

// NewDependencies builds the full dependency graph. The returned
// cleanup closes every connection in reverse open order.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Postgres
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { _ = db.Close() })

	// MongoDB (search index)
	mongoClient, err := database.NewMongo(cfg.MongoDBURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	})

	// Redis (classification verdict cache), optional
	var verdictCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("[Bootstrap] Redis unavailable, classification cache disabled")
		} else {
			deps.Redis = redisClient
			verdictCache = cache.NewRedisCache(redisClient)
			cleanups = append(cleanups, func() { _ = redisClient.Close() })
		}
	}

	// Repositories
	deps.AccountRepo = persistence.NewAccountAdapter(db)
	deps.CredentialRepo = persistence.NewCredentialAdapter(db)
	deps.MessageRepo = persistence.NewMessageAdapter(db)

	// Search index
	deps.SearchIndex = searchidx.NewMongoIndex(mongoClient.Database(cfg.MongoDBName))
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.SearchIndex.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("[Bootstrap] Failed to ensure search indexes")
		}
	}

	// Providers
	deps.GmailProvider = provider.NewGmailProvider(&provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	}, deps.CredentialRepo)
	deps.ImapProvider = provider.NewImapProvider(deps.CredentialRepo)
	deps.ProviderFactory = provider.NewFactory(deps.GmailProvider, deps.ImapProvider)

	// Classifier
	deps.Classifier = llm.NewOpenAIClassifier(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	// Services
	deps.CredentialGate = auth.NewCredentialGate(deps.AccountRepo, deps.CredentialRepo)
	deps.Fetcher = syncsvc.NewFetcher(deps.CredentialGate, deps.ProviderFactory, deps.MessageRepo, deps.AccountRepo, deps.SearchIndex)
	deps.SyncScheduler = syncsvc.NewScheduler(deps.Fetcher, deps.AccountRepo, cfg.SyncInterval, cfg.SyncDaysBack, cfg.SyncMaxCount)

	var verdict out.Cache
	if verdictCache != nil {
		verdict = verdictCache
	}
	deps.Engine = classify.NewEngine(deps.MessageRepo, deps.Classifier, deps.SearchIndex, verdict, cfg.ClassifyCacheTTL)
	deps.BatchScheduler = classify.NewBatchScheduler(deps.Engine, deps.MessageRepo)

	deps.SearchService = search.NewService(deps.SearchIndex, deps.MessageRepo, cfg.ResyncMaxRows)
	deps.AccountManager = account.NewManager(deps.AccountRepo, deps.MessageRepo, deps.SearchIndex)

	return deps, cleanup, nil
}
