package server

import (
	"net/http"
	"strconv"

	"newsfacts/internal/core"
	"newsfacts/internal/refresh"
)

const invalidDateMessage = "Invalid date format. Use YYYY-MM-DD"

// RefreshResponse summarises a manual refresh
type RefreshResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	FactsCount   int    `json:"facts_count"`
	ArticleCount int    `json:"article_count"`
}

// PeriodsResponse lists cached periods
type PeriodsResponse struct {
	Periods []core.PeriodSummary `json:"periods"`
	Total   int                  `json:"total"`
}

// periodFromQuery resolves date_from/date_to, each defaulting to the rolling [yesterday, today] window.
func (s *Server) periodFromQuery(r *http.Request) (core.Period, error) {
	def := core.DefaultPeriod(s.now())
	from, to := def.FromString(), def.ToString()
	if v := r.URL.Query().Get("date_from"); v != "" {
		from = v
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		to = v
	}
	return core.ParsePeriod(from, to)
}

// handleGetFacts handles GET /api/facts. Without refresh=true it never calls the model.
func (s *Server) handleGetFacts(w http.ResponseWriter, r *http.Request) {
	period, err := s.periodFromQuery(r)
	if err != nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"error": invalidDateMessage,
			"facts": []core.Fact{},
		})
		return
	}

	if forced, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); forced {
		res, err := s.refresher.RefreshRange(r.Context(), period)
		if err != nil {
			s.log.Error("Forced facts refresh failed", "period", period.Key(), "error", err)
			b := pendingBundle(period)
			b.Status = ""
			b.Error = err.Error()
			s.respondJSON(w, http.StatusOK, b)
			return
		}
		s.respondJSON(w, http.StatusOK, res.Response())
		return
	}

	b, err := s.reader.Read(r.Context(), &period)
	if err != nil {
		s.log.Error("Failed to read facts cache", "period", period.Key(), "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read facts")
		return
	}
	if b == nil {
		s.respondJSON(w, http.StatusOK, pendingBundle(period))
		return
	}
	s.respondJSON(w, http.StatusOK, b)
}

func pendingBundle(period core.Period) core.Bundle {
	return core.Bundle{
		FactBundle: core.EmptyFactBundle(),
		DateFrom:   period.FromString(),
		DateTo:     period.ToString(),
		Status:     "pending",
	}
}

// handleRefreshFacts handles POST /api/facts/refresh
func (s *Server) handleRefreshFacts(w http.ResponseWriter, r *http.Request) {
	period, err := s.periodFromQuery(r)
	if err != nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"error": invalidDateMessage})
		return
	}

	resp := RefreshResponse{DateFrom: period.FromString(), DateTo: period.ToString()}

	res, err := s.refresher.RefreshRange(r.Context(), period)
	if err != nil {
		s.log.Error("Manual facts refresh failed", "period", period.Key(), "error", err)
		resp.Status = "error"
		resp.Message = err.Error()
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Status = "success"
	resp.Message = "Facts cache refreshed"
	resp.FactsCount = len(res.Facts.Facts)
	resp.ArticleCount = res.ArticleCount
	s.respondJSON(w, http.StatusOK, resp)
}

// handleBackfillFacts handles POST /api/facts/backfill (admin only)
func (s *Server) handleBackfillFacts(w http.ResponseWriter, r *http.Request) {
	var opts refresh.BackfillOptions

	if v := r.URL.Query().Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		opts.Force = force
	}
	if v := r.URL.Query().Get("max_batches"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "max_batches must be a non-negative integer")
			return
		}
		opts.MaxBatches = n
	}

	result, err := s.refresher.Backfill(r.Context(), opts)
	if err != nil {
		s.log.Error("Facts backfill failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Backfill failed: "+err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleListPeriods handles GET /api/facts/periods
func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.reader.Periods(r.Context())
	if err != nil {
		s.log.Error("Failed to list cached periods", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list periods")
		return
	}
	if periods == nil {
		periods = []core.PeriodSummary{}
	}
	s.respondJSON(w, http.StatusOK, PeriodsResponse{Periods: periods, Total: len(periods)})
}
