// Package httpapi exposes the TVL REST API.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	tvlsvc "github.com/R3E-Network/tvl_service/internal/app/services/tvl"
	"github.com/R3E-Network/tvl_service/internal/httputil"
	"github.com/R3E-Network/tvl_service/pkg/logger"
)

// handler bundles the HTTP endpoints for the TVL service.
type handler struct {
	svc  *tvlsvc.Service
	info *infoProvider
	log  *logger.Logger
}

// NewHandler returns a router exposing the TVL API.
func NewHandler(svc *tvlsvc.Service, version string, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		svc:  svc,
		info: newInfoProvider(version, len(svc.Chains())),
		log:  log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/info", h.serviceInfo).Methods(http.MethodGet)

	api := r.PathPrefix("/api/tvl").Subrouter()
	api.HandleFunc("/all", h.allChains).Methods(http.MethodGet)
	api.HandleFunc("/csv", h.chainsCSV).Methods(http.MethodGet)
	api.HandleFunc("/{chain}", h.chainSummary).Methods(http.MethodGet)

	return r
}

func (h *handler) chainSummary(w http.ResponseWriter, r *http.Request) {
	chain := mux.Vars(r)["chain"]

	summary, err := h.svc.Summary(r.Context(), chain)
	if err != nil {
		h.writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *handler) allChains(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Overview(r.Context())
	if err != nil {
		h.writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (h *handler) chainsCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=tvl_data.csv")

	if err := h.svc.WriteCSV(r.Context(), w); err != nil {
		if errors.Is(err, tvlsvc.ErrNoData) {
			w.Header().Del("Content-Disposition")
			httputil.WriteError(w, http.StatusBadGateway, "no data available to export")
			return
		}
		h.log.WithError(err).Error("csv export failed")
	}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) serviceInfo(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.info.snapshot())
}

// writeServiceError maps service errors onto HTTP statuses. fallback is
// used for errors without a dedicated mapping.
func (h *handler) writeServiceError(w http.ResponseWriter, err error, fallback int) {
	switch {
	case errors.Is(err, tvlsvc.ErrUnknownChain):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tvlsvc.ErrUpstream):
		httputil.WriteError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, tvlsvc.ErrNoData):
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		h.log.WithError(err).Error("request failed")
		httputil.WriteError(w, fallback, err.Error())
	}
}
