package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/croverlay/croverlay/internal/api/response"
	"github.com/croverlay/croverlay/internal/tracker"
)

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"active": s.session.Active(),
	})
}

type sessionState struct {
	Active  bool                   `json:"active"`
	MatchID string                 `json:"matchId,omitempty"`
	Elixir  tracker.ElixirSnapshot `json:"elixir"`
	Cycle   tracker.CycleSnapshot  `json:"cycle"`
	Dropped int                    `json:"droppedEvents"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	response.Success(w, sessionState{
		Active:  s.session.Active(),
		MatchID: s.session.MatchID(),
		Elixir:  s.session.ElixirSnapshot(),
		Cycle:   s.session.CycleSnapshot(),
		Dropped: s.session.DroppedEvents(),
	})
}

func (s *Server) getElixir(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.session.ElixirSnapshot())
}

func (s *Server) getCycle(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.session.CycleSnapshot())
}

type adjustRequest struct {
	Delta float64 `json:"delta"`
}

func (s *Server) adjustElixir(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.session.AdjustElixir(req.Delta, time.Now()); err != nil {
		if errors.Is(err, tracker.ErrSessionInactive) {
			response.Conflict(w, err)
			return
		}
		response.InternalError(w, err)
		return
	}
	response.Success(w, s.session.ElixirSnapshot())
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		response.NotFound(w, errors.New("persistence disabled"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(w, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	matches, err := s.repo.ListMatches(r.Context(), limit)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, matches)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		response.NotFound(w, errors.New("persistence disabled"))
		return
	}
	id := chi.URLParam(r, "matchID")
	match, err := s.repo.GetMatch(r.Context(), id)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	if match == nil {
		response.NotFound(w, fmt.Errorf("match %s not found", id))
		return
	}
	response.Success(w, match)
}

func (s *Server) getMatchPlays(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		response.NotFound(w, errors.New("persistence disabled"))
		return
	}
	plays, err := s.repo.PlaysForMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, plays)
}

func (s *Server) getMatchCounts(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		response.NotFound(w, errors.New("persistence disabled"))
		return
	}
	counts, err := s.repo.PlayCounts(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, counts)
}

type metricsState struct {
	DroppedEvents      int64   `json:"droppedEvents"`
	AnomalousSpends    int64   `json:"anomalousSpends"`
	HypothesisResets   int64   `json:"hypothesisResets"`
	ResolveLatencyP50  float64 `json:"resolveLatencyP50Ms"`
	ResolveLatencyP95  float64 `json:"resolveLatencyP95Ms"`
	ResolveLatencyMax  float64 `json:"resolveLatencyMaxMs"`
	CorrectionDepthP95 float64 `json:"correctionDepthP95"`
	Resolves           int     `json:"resolves"`
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		response.Success(w, metricsState{})
		return
	}
	response.Success(w, metricsState{
		DroppedEvents:      s.metrics.DroppedEvents(),
		AnomalousSpends:    s.metrics.AnomalousSpends(),
		HypothesisResets:   s.metrics.Resets(),
		ResolveLatencyP50:  s.metrics.ResolveLatencyMs.Percentile(50),
		ResolveLatencyP95:  s.metrics.ResolveLatencyMs.Percentile(95),
		ResolveLatencyMax:  s.metrics.ResolveLatencyMs.Max(),
		CorrectionDepthP95: s.metrics.CorrectionDepth.Percentile(95),
		Resolves:           s.metrics.ResolveLatencyMs.Count(),
	})
}
