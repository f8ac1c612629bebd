package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/crawler"
)

// flushEvery is the number of NDJSON lines written between flushes.
const flushEvery = 100

// statistics handles GET /v1/stats.
func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	st, err := s.reader.Statistics(ctx)
	if err != nil {
		s.logger.Error("load statistics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// countMatches handles GET /v1/matches/count?version=&queue=.
func (s *Server) countMatches(w http.ResponseWriter, r *http.Request) {
	ver, queueID, err := parseMatchFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	n, err := s.reader.Count(ctx, ver, queueID)
	if err != nil {
		s.logger.Error("count matches failed", zap.String("version", ver), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": ver, "queue": queueID, "count": n})
}

// streamMatches handles GET /v1/matches?version=&queue=&limit=. Records are written
// as newline-delimited JSON while the query is still iterating. Once the first line
// is out, a storage error is reported as a trailing {"error": ...} line.
func (s *Server) streamMatches(w http.ResponseWriter, r *http.Request) {
	ver, queueID, err := parseMatchFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	written := 0
	for rec, err := range s.reader.StreamByVersion(r.Context(), ver, queueID, limit) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("stream matches failed",
				zap.String("version", ver),
				zap.Int("written", written),
				zap.Error(err),
			)
			if written == 0 {
				writeError(w, http.StatusInternalServerError, "failed to stream matches")
				return
			}
			_ = enc.Encode(map[string]string{"error": "stream interrupted"})
			return
		}
		if written == 0 {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
		}
		if err := enc.Encode(rec); err != nil {
			s.logger.Debug("client went away", zap.Int("written", written), zap.Error(err))
			return
		}
		written++
		if flusher != nil && written%flushEvery == 0 {
			flusher.Flush()
		}
	}
	if written == 0 {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
	}
}

// matchExists handles GET /v1/matches/{match_id}/exists.
func (s *Server) matchExists(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimSpace(chi.URLParam(r, "match_id"))
	if matchID == "" {
		writeError(w, http.StatusBadRequest, "match_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	ok, err := s.reader.Exists(ctx, matchID)
	if err != nil {
		s.logger.Error("match lookup failed", zap.String("match_id", matchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up match")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"match_id": matchID, "exists": ok})
}

func parseMatchFilter(r *http.Request) (string, int, error) {
	q := r.URL.Query()
	ver := strings.TrimSpace(q.Get("version"))
	if ver == "" {
		return "", 0, errors.New("version is required")
	}
	queueID := crawler.QueueRankedSolo
	if raw := q.Get("queue"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || !crawler.IsRankedQueue(val) {
			return "", 0, errors.New("invalid queue")
		}
		queueID = val
	}
	return ver, queueID, nil
}

// parseLimit returns 0 (unlimited) when the parameter is absent.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, errors.New("invalid limit")
	}
	return val, nil
}
