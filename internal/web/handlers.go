package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/cache"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
)

const maxQuerySize = 10 << 10 // 10KB

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": stats})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req core.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "query is required"})
		return
	}
	if len(req.Query) > maxQuerySize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "query exceeds maximum size of 10KB"})
		return
	}

	// Shared response cache: serve byte-identical answers across instances.
	var respKey string
	if s.respCache != nil && !req.NoCache {
		cons := core.Constraints{}
		if req.Constraints != nil {
			cons = *req.Constraints
		}
		respKey = cache.Key("ask", cache.NormalizeQuery(req.Query), cons.Canonical(), strconv.Itoa(req.Limit))
		if body, ok, err := s.respCache.Get(c.Request.Context(), respKey); err != nil {
			s.logger.Warn("response cache get failed", zap.Error(err))
		} else if ok {
			responseCacheHits.Inc()
			c.Data(http.StatusOK, "application/json", body)
			return
		}
	}

	answer, err := s.engine.AnswerQuery(c.Request.Context(), req)
	if err != nil {
		s.renderError(c, err)
		return
	}

	payload := gin.H{"success": true, "answer": answer}
	if respKey != "" {
		if body, err := json.Marshal(payload); err == nil {
			if err := s.respCache.Set(c.Request.Context(), respKey, body); err != nil {
				s.logger.Warn("response cache set failed", zap.Error(err))
			}
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleSuggest(c *gin.Context) {
	var req core.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if len(req.Deck.CardIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "deck.card_ids is required"})
		return
	}

	result, err := s.engine.SuggestForContext(c.Request.Context(), req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (s *Server) handleCard(c *gin.Context) {
	card, err := s.engine.Card(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "card": card})
}

func (s *Server) handleCombos(c *gin.Context) {
	mode := c.DefaultQuery("mode", core.ModeFocused)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	var cons core.Constraints
	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if v, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			cons.MaxPrice = v
		}
	}

	combos, err := s.engine.CombosForCard(c.Request.Context(), c.Param("id"), mode, cons, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "combos": combos, "count": len(combos)})
}

func (s *Server) handleCombosUnderPrice(c *gin.Context) {
	maxPrice, err := strconv.ParseFloat(c.Query("max_price"), 64)
	if err != nil || maxPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "max_price query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	combos, err := s.engine.CombosUnderPrice(c.Request.Context(), maxPrice, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "combos": combos, "count": len(combos)})
}

// renderError maps the engine error taxonomy onto HTTP statuses: NotFound
// is 404, anything else from a collaborator is 502.
func (s *Server) renderError(c *gin.Context, err error) {
	if core.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
}
