package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"prayer_attendance/internal/app"
	"prayer_attendance/internal/domain/ivr"
	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/verse"
	"prayer_attendance/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// CallFlow answers the attendance call.
type CallFlow interface {
	Init(ctx context.Context) ivr.Directive
	Checkpoint(ctx context.Context, event ivr.DigitEvent) (ivr.Directive, error)
}

// UnlockFlow answers the unlock call and its dial status callback.
type UnlockFlow interface {
	RequestUnlock(ctx context.Context, streamParam string, event ivr.DigitEvent) (ivr.Directive, error)
	HandleCallStatus(ctx context.Context, memberID int64, status ivr.CallStatus) error
}

// Admin is the management surface used by the admin app.
type Admin interface {
	CheckPin(pin string) bool
	ListMembers(ctx context.Context) ([]*member.Member, error)
	GetMember(ctx context.Context, id int64) (*member.Member, error)
	RegisterMember(ctx context.Context, m *member.Member) (*member.Member, error)
	UpdateMember(ctx context.Context, id int64, changes *member.Member) (*member.Member, error)
	RemoveMember(ctx context.Context, id int64) error
	GetSubAdmins(ctx context.Context) (member.SubAdminAssignments, error)
	UpdateSubAdmins(ctx context.Context, assignments member.SubAdminAssignments) error
	GetVerses(ctx context.Context, start, end string) ([]*verse.Entry, error)
	UpsertVerses(ctx context.Context, updates []verse.Update) error
}

// JobRunner runs a workflow on demand.
type JobRunner interface {
	Run(ctx context.Context, job app.JobID) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Calls      CallFlow
	Unlocks    UnlockFlow
	Admin      Admin
	Jobs       JobRunner
	Flow       ivr.Flow
	StaticDir  string // audio prompts; not served when empty
	JobTimeout time.Duration
	Metrics    *metrics.Metrics
	Logger     *logrus.Entry
}

// NewHandler builds the full routing tree with its middleware.
func NewHandler(d Deps) http.Handler {
	if d.JobTimeout <= 0 {
		d.JobTimeout = 5 * time.Minute
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(exposeRequestID)
	r.Use(middleware.RequestLogger(&accessLogFormatter{logger: d.Logger}))
	r.Use(recoverPanic(d.Logger))
	r.Use(cors)
	r.Use(middleware.StripSlashes)

	ivrH := &ivrHandler{calls: d.Calls, unlocks: d.Unlocks, flow: d.Flow, metrics: d.Metrics, logger: d.Logger}
	r.Post("/ivr/init", ivrH.init)
	r.Post("/ivr/checkpoint", ivrH.checkpoint)
	r.Post("/ivr/hangup", ivrH.hangup)
	r.Post("/unlock", ivrH.unlock)
	r.Post("/unlock/status", ivrH.unlockStatus)

	adminH := &adminHandler{admin: d.Admin, jobs: d.Jobs, jobTimeout: d.JobTimeout, logger: d.Logger}
	r.Post("/admin/check-pin", adminH.checkPin)
	r.Group(func(r chi.Router) {
		r.Use(requirePin(d.Admin))
		r.Get("/admin/members", adminH.listMembers)
		r.Post("/admin/members", adminH.registerMember)
		r.Get("/admin/members/{id}", adminH.getMember)
		r.Put("/admin/members/{id}", adminH.updateMember)
		r.Delete("/admin/members/{id}", adminH.removeMember)
		r.Get("/admin/sub-admins", adminH.getSubAdmins)
		r.Put("/admin/sub-admins", adminH.updateSubAdmins)
		r.Post("/admin/jobs/{job}", adminH.triggerJob)
		r.Get("/daily-verses", adminH.getVerses)
		r.Post("/daily-verses/bulk-update", adminH.bulkUpdateVerses)
	})

	if d.StaticDir != "" {
		r.Method(http.MethodGet, "/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	return r
}

// NewServer wraps handler with the timeouts used in production.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, errorResponse{Error: errText, Message: message})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}
