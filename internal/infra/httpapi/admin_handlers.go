package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"prayer_attendance/internal/app"
	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/verse"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// AdminPinHeader carries the admin PIN on every guarded request.
const AdminPinHeader = "X-Admin-Pin"

func requirePin(admin Admin) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !admin.CheckPin(r.Header.Get(AdminPinHeader)) {
				writeError(w, http.StatusUnauthorized, app.ErrAdminNotAuthorized.Error(), "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminHandler struct {
	admin      Admin
	jobs       JobRunner
	jobTimeout time.Duration
	logger     *logrus.Entry
}

// fail maps service errors to status codes. Unexpected errors are logged and become 500.
func (h *adminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, member.ErrMemberNotFound), errors.Is(err, verse.ErrVerseNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, member.ErrDuplicatePhoneStream):
		writeError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, app.ErrInvalidMember), errors.Is(err, app.ErrInvalidSubAdmins), errors.Is(err, app.ErrInvalidVerseRange):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		}).Error("Admin request failed")
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *adminHandler) checkPin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pin string `json:"pin"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": h.admin.CheckPin(body.Pin)})
}

func (h *adminHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.admin.ListMembers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembersJSON(members))
}

func (h *adminHandler) getMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id", "")
		return
	}
	m, err := h.admin.GetMember(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberJSON(m))
}

func (h *adminHandler) decodeMember(w http.ResponseWriter, r *http.Request) (*member.Member, bool) {
	var body memberJSON
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return nil, false
	}
	m, err := body.toMember()
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidMember.Error(), err.Error())
		return nil, false
	}
	return m, true
}

func (h *adminHandler) registerMember(w http.ResponseWriter, r *http.Request) {
	m, ok := h.decodeMember(w, r)
	if !ok {
		return
	}
	created, err := h.admin.RegisterMember(r.Context(), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberJSON(created))
}

func (h *adminHandler) updateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id", "")
		return
	}
	m, ok := h.decodeMember(w, r)
	if !ok {
		return
	}
	updated, err := h.admin.UpdateMember(r.Context(), id, m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberJSON(updated))
}

func (h *adminHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id", "")
		return
	}
	if err := h.admin.RemoveMember(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func subAdminsJSON(a member.SubAdminAssignments) map[string]int64 {
	out := make(map[string]int64, len(a))
	for stream, id := range a {
		out[string(stream)] = id
	}
	return out
}

func (h *adminHandler) getSubAdmins(w http.ResponseWriter, r *http.Request) {
	a, err := h.admin.GetSubAdmins(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subAdminsJSON(a))
}

func (h *adminHandler) updateSubAdmins(w http.ResponseWriter, r *http.Request) {
	var body map[string]int64
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	assignments := make(member.SubAdminAssignments, len(body))
	for raw, id := range body {
		stream, err := member.ParseStream(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, app.ErrInvalidSubAdmins.Error(), err.Error())
			return
		}
		assignments[stream] = id
	}
	if err := h.admin.UpdateSubAdmins(r.Context(), assignments); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subAdminsJSON(assignments))
}

func (h *adminHandler) getVerses(w http.ResponseWriter, r *http.Request) {
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "Missing start or end date", "")
		return
	}
	entries, err := h.admin.GetVerses(r.Context(), start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersesJSON(entries))
}

func (h *adminHandler) bulkUpdateVerses(w http.ResponseWriter, r *http.Request) {
	var body map[string]verseJSON
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	updates := make([]verse.Update, 0, len(body))
	for date, v := range body {
		updates = append(updates, verse.Update{Date: date, Small: v.Small, Medium: v.Medium, Large: v.Large})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].Date < updates[j].Date })
	if len(updates) > 0 {
		if err := h.admin.UpsertVerses(r.Context(), updates); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// triggerJob starts a workflow in the background and answers 202 immediately.
func (h *adminHandler) triggerJob(w http.ResponseWriter, r *http.Request) {
	job, err := app.ParseJobID(chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.jobTimeout)
	go func() {
		defer cancel()
		// the orchestrator logs the outcome with its run id
		_ = h.jobs.Run(ctx, job)
	}()
	h.logger.WithFields(logrus.Fields{
		"request_id": RequestIDFromContext(r.Context()),
		"job":        job,
	}).Info("Job triggered manually")
	writeJSON(w, http.StatusAccepted, map[string]string{"job": string(job), "status": "accepted"})
}
