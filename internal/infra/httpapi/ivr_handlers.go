package httpapi

import (
	"net/http"
	"strconv"

	"prayer_attendance/internal/domain/ivr"
	"prayer_attendance/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// statusAcknowledged is the plain-text reply to every dial status callback.
const statusAcknowledged = "status acknowledged!"

// ivrHandler serves the telephony engine. Callers always get a directive, never an error body.
type ivrHandler struct {
	calls   CallFlow
	unlocks UnlockFlow
	flow    ivr.Flow
	metrics *metrics.Metrics
	logger  *logrus.Entry
}

func (h *ivrHandler) respond(w http.ResponseWriter, endpoint string, d ivr.Directive) {
	h.metrics.ObserveDirective(endpoint, d.ActionName())
	writeJSON(w, http.StatusOK, d)
}

func (h *ivrHandler) init(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "init", h.calls.Init(r.Context()))
}

func (h *ivrHandler) hangup(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, "hangup", h.flow.Hangup())
}

func (h *ivrHandler) checkpoint(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithField("request_id", RequestIDFromContext(r.Context()))
	var event ivr.DigitEvent
	if err := decodeJSON(r, &event); err != nil {
		log.WithError(err).Warn("Undecodable checkpoint payload, hanging up")
		h.respond(w, "checkpoint", h.flow.Hangup())
		return
	}
	d, err := h.calls.Checkpoint(r.Context(), event)
	if err != nil {
		log.WithError(err).WithField("caller_id", event.CallerID).Error("Checkpoint failed, hanging up")
		d = h.flow.Hangup()
	}
	h.respond(w, "checkpoint", d)
}

func (h *ivrHandler) unlock(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithField("request_id", RequestIDFromContext(r.Context()))
	var event ivr.DigitEvent
	if err := decodeJSON(r, &event); err != nil {
		log.WithError(err).Warn("Undecodable unlock payload, hanging up")
		h.respond(w, "unlock", h.flow.Hangup())
		return
	}
	d, err := h.unlocks.RequestUnlock(r.Context(), r.URL.Query().Get("stream"), event)
	if err != nil {
		log.WithError(err).WithField("caller_id", event.CallerID).Error("Unlock request failed, hanging up")
		d = h.flow.Hangup()
	}
	h.respond(w, "unlock", d)
}

func (h *ivrHandler) unlockStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithField("request_id", RequestIDFromContext(r.Context()))
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid member id", "")
		return
	}
	var status ivr.CallStatus
	if err := decodeJSON(r, &status); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if err := h.unlocks.HandleCallStatus(r.Context(), id, status); err != nil {
		log.WithError(err).WithField("member_id", id).Error("Failed to record unlock approval")
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(statusAcknowledged))
}
