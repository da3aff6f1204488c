// Package api exposes the read-only debug/status HTTP surface: health,
// prometheus metrics, channel summaries and the live session table. It is
// not a sync transport; control payloads travel via the host's messaging
// layer.
package api

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
	syncpkg "github.com/QuilibriumNetwork/quorum-shared/pkg/sync"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/utils"
)

// Handler serves the debug routes over one sync engine.
type Handler struct {
	engine  *syncpkg.Engine
	gate    *rateGate
	version string
}

// New builds the handler. rps/burst bound per-remote request rates; zero
// values fall back to conservative defaults.
func New(engine *syncpkg.Engine, rps float64, burst int, version string) *Handler {
	return &Handler{
		engine:  engine,
		gate:    newRateGate(rps, burst),
		version: version,
	}
}

// Router assembles the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.rateLimit)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/v1/spaces/{space}/channels/{channel}/summary", h.summary).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions", h.sessions).Methods(http.MethodGet)
	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}
		if !h.gate.allow(key) {
			utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	space, channel := vars["space"], vars["channel"]
	s, err := h.engine.Caches().Summary(r.Context(), space, channel)
	if err != nil {
		logger.Error("summary_failed", "space", space, "channel", channel, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "failed to load channel summary")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, s)
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	type sessionView struct {
		SpaceID    string `json:"spaceId"`
		ChannelID  string `json:"channelId"`
		Expiry     int64  `json:"expiry"`
		Candidates int    `json:"candidates"`
		InProgress bool   `json:"inProgress"`
	}
	live := h.engine.Sessions()
	out := make([]sessionView, 0, len(live))
	for _, s := range live {
		out = append(out, sessionView{
			SpaceID:    s.SpaceID,
			ChannelID:  s.ChannelID,
			Expiry:     s.Expiry.UnixMilli(),
			Candidates: len(s.Candidates),
			InProgress: s.InProgress,
		})
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}
