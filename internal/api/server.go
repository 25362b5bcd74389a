// Package api exposes read-only ledger queries and prometheus metrics over
// HTTP. Queries never mutate accumulator state, so they are safe to serve
// concurrently with user actions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"farmLedger/internal/farm"
)

// Server is the query HTTP server.
type Server struct {
	farm   *farm.Farm
	logger *zap.Logger
}

func NewServer(engine *farm.Farm, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{farm: engine, logger: logger}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Get("/pools", s.handlePools)
	r.Get("/pools/{pid}/positions/{user}/pending", s.handlePending)
	r.Get("/pools/{pid}/positions/{user}/can-harvest", s.handleCanHarvest)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reward_per_second": s.farm.RewardPerSecond().String(),
		"total_locked_up":   s.farm.TotalLockedUp().String(),
		"pools":             s.farm.PoolCount(),
	})
}

func (s *Server) handlePools(w http.ResponseWriter, _ *http.Request) {
	pools, _ := s.farm.Snapshot()
	writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pid, user, ok := s.parsePosition(w, r)
	if !ok {
		return
	}
	pending, err := s.farm.PendingReward(pid, user)
	if err != nil {
		s.writeFarmError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool_id": pid,
		"user":    user.Hex(),
		"pending": pending.String(),
	})
}

func (s *Server) handleCanHarvest(w http.ResponseWriter, r *http.Request) {
	pid, user, ok := s.parsePosition(w, r)
	if !ok {
		return
	}
	canHarvest, err := s.farm.CanHarvest(pid, user)
	if err != nil {
		s.writeFarmError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool_id":     pid,
		"user":        user.Hex(),
		"can_harvest": canHarvest,
	})
}

func (s *Server) parsePosition(w http.ResponseWriter, r *http.Request) (int, common.Address, bool) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return 0, common.Address{}, false
	}
	userParam := chi.URLParam(r, "user")
	if !common.IsHexAddress(userParam) {
		writeError(w, http.StatusBadRequest, "invalid user address")
		return 0, common.Address{}, false
	}
	return pid, common.HexToAddress(userParam), true
}

func (s *Server) writeFarmError(w http.ResponseWriter, err error) {
	if errors.Is(err, farm.ErrPoolNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("query failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
