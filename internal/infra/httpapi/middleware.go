package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// RequestIDFromContext returns "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// exposeRequestID echoes the id assigned by middleware.RequestID back to the caller.
func exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// cors allows the admin app to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+AdminPinHeader+", "+RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLogFormatter writes one logrus line per request for middleware.RequestLogger.
type accessLogFormatter struct {
	logger *logrus.Entry
}

func (f *accessLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &accessLogEntry{logger: f.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	})}
}

type accessLogEntry struct {
	logger *logrus.Entry
}

func (e *accessLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	e.logger.WithFields(logrus.Fields{
		"status": status,
		"bytes":  bytes,
		"took":   elapsed.String(),
	}).Info("HTTP request")
}

func (e *accessLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.WithField("stack", string(stack)).WithError(fmt.Errorf("%v", v)).Error("Uncaught error while handling request")
}

// recoverPanic turns a handler panic into a JSON 500. The panic value is only logged.
func recoverPanic(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if entry := middleware.GetLogEntry(r); entry != nil {
					entry.Panic(rec, debug.Stack())
				} else {
					logger.WithError(fmt.Errorf("%v", rec)).WithFields(logrus.Fields{
						"request_id": middleware.GetReqID(r.Context()),
						"path":       r.URL.Path,
					}).Error("Uncaught error while handling request")
				}
				writeError(w, http.StatusInternalServerError, "Internal Server Error", "")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
