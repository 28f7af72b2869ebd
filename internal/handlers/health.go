package handlers

import "net/http"

type healthResponse struct {
	Envelope
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	WriteJSON(w, http.StatusOK, healthResponse{
		Envelope:    Envelope{Status: StatusSuccess, Message: "Server is running", Timestamp: Timestamp(now)},
		Uptime:      now.Sub(h.started).Seconds(),
		Environment: h.Cfg.NodeEnv,
	})
}
