// Package web exposes the suggestion engine over HTTP.
package web

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/cache"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
)

// SuggestionEngine defines the engine operations used by the handlers.
// Implementations: core.Engine
type SuggestionEngine interface {
	AnswerQuery(ctx context.Context, req core.QueryRequest) (*core.Answer, error)
	SuggestForContext(ctx context.Context, req core.SuggestRequest) (*core.Suggestions, error)
	Card(ctx context.Context, idOrName string) (*core.Card, error)
	CombosForCard(ctx context.Context, idOrName, mode string, cons core.Constraints, limit int) ([]core.RankedResult, error)
	CombosUnderPrice(ctx context.Context, maxPrice float64, limit int) ([]core.RankedResult, error)
	Stats(ctx context.Context) (*core.EngineStats, error)
}

// Server is the suggestion API server.
type Server struct {
	engine    SuggestionEngine
	router    *gin.Engine
	logger    *zap.Logger
	respCache *cache.ResponseCache // nil disables shared response caching
}

// NewServer creates the API server. respCache may be nil.
func NewServer(engine SuggestionEngine, logger *zap.Logger, respCache *cache.ResponseCache) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		router:    router,
		logger:    logger,
		respCache: respCache,
	}

	router.Use(metricsMiddleware())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", metricsHandler())

	api := router.Group("/api")
	{
		api.POST("/ask", s.handleAsk)
		api.POST("/suggest", s.handleSuggest)
		api.GET("/card/:id", s.handleCard)
		api.GET("/combos/:id", s.handleCombos)
		api.GET("/combos", s.handleCombosUnderPrice)
	}

	return s
}

// Run starts the server on addr.
func (s *Server) Run(addr string) error {
	s.logger.Info("api server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the underlying router for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
