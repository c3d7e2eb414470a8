// Package app wires the service graph and owns process lifecycle: the
// HTTP server and the ingestion consumer.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/generative-ai-go/genai"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/kilowulf/livdoc/features/chat"
	"github.com/kilowulf/livdoc/features/document"
	gemadapter "github.com/kilowulf/livdoc/internal/adapter/gemini"
	wstore "github.com/kilowulf/livdoc/internal/adapter/weaviate"
	"github.com/kilowulf/livdoc/internal/cache"
	"github.com/kilowulf/livdoc/internal/config"
	"github.com/kilowulf/livdoc/internal/ingest"
	"github.com/kilowulf/livdoc/internal/middleware"
	"github.com/kilowulf/livdoc/internal/vector"
)

type App struct {
	Handler  http.Handler
	Pipeline *ingest.Pipeline

	cfg *config.Config
}

func New(
	cfg *config.Config,
	db *sql.DB,
	wClient *weaviate.Client,
	producer *nsq.Producer,
	redisClient *redis.Client,
	genaiClient *genai.Client,
) (*App, error) {
	vecStore := wstore.NewStore(wClient)
	embedder := gemadapter.NewEmbedder(genaiClient, cfg.EmbeddingModel)
	vecIndex := vector.NewIndex(embedder, vecStore)

	var docCache document.Cache
	var statusCache ingest.StatusInvalidator
	if redisClient != nil {
		c := cache.NewDocumentCache(redisClient, time.Duration(cfg.StatusCacheTTLSecond)*time.Second)
		docCache = c
		statusCache = c
	}

	documentRepo := document.NewPostgresRepo(db)
	documentService := document.NewService(documentRepo, producer, vecIndex, docCache)
	documentHandler := document.NewHandler(documentService)

	completer := gemadapter.NewCompleter(genaiClient, cfg.ChatModel)
	chatRepo := chat.NewPostgresRepo(db)
	chatService := chat.NewService(chatRepo, documentService, vecIndex, completer, cfg.RetrievalTopK, cfg.HistoryWindow)
	chatHandler := chat.NewHandler(chatService)

	pipeline := ingest.NewPipeline(
		documentRepo,
		ingest.NewHTTPFetcher(),
		ingest.PDFParser{},
		vecIndex,
		statusCache,
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second,
		cfg.ChunkSize,
		cfg.ChunkOverlap,
	)

	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Post("/api/uploads/complete", documentHandler.UploadComplete)
		r.Get("/api/documents", documentHandler.List)
		r.Get("/api/documents/{id}", documentHandler.Get)
		r.Delete("/api/documents/{id}", documentHandler.Delete)

		r.Get("/api/documents/{id}/messages", chatHandler.ListMessages)
		r.Post("/api/documents/{id}/messages", chatHandler.Ask)
	})

	return &App{Handler: r, Pipeline: pipeline, cfg: cfg}, nil
}

// Run serves HTTP until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunConsumer subscribes the ingestion pipeline to the task topic and
// blocks until the context is canceled.
func (a *App) RunConsumer(ctx context.Context) error {
	nsqCfg := nsq.NewConfig()
	consumer, err := nsq.NewConsumer(config.TopicIngestTask, config.ChannelIngest, nsqCfg)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	consumer.AddHandler(a.Pipeline)

	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		return fmt.Errorf("connect to nsqlookupd: %w", err)
	}

	<-ctx.Done()
	consumer.Stop()
	<-consumer.StopChan
	return nil
}
