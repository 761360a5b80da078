package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/codec"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/executor"
	"github.com/unkn0wn-root/reststudio/internal/notify"
)

const maxBodyBytes = 8 << 20

// envelope wraps every JSON answer. Notices are what the UI shows as
// toasts and are present even on success.
type envelope struct {
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Notices []notify.Notice `json:"notices"`
}

// errNotFound marks a missing resource named in the URL.
type errNotFound struct {
	What string
}

func (e errNotFound) Error() string { return e.What + " not found" }

func (e errNotFound) HTTPStatus() int { return http.StatusNotFound }

type errBadRequest struct {
	Err error
}

func (e errBadRequest) Error() string { return e.Err.Error() }

func (e errBadRequest) Unwrap() error { return e.Err }

func (e errBadRequest) HTTPStatus() int { return http.StatusBadRequest }

type httpStatuser interface {
	HTTPStatus() int
}

// call is the per-request state handed to handlers.
type call struct {
	req      *http.Request
	notices  *notify.Collector
	notifier notify.Notifier
	codec    *codec.Codec
}

func (c *call) decode(into any) error {
	dec := json.NewDecoder(io.LimitReader(c.req.Body, maxBodyBytes))
	if err := dec.Decode(into); err != nil {
		return errBadRequest{Err: fmt.Errorf("invalid JSON body: %w", err)}
	}
	return nil
}

// pathVar returns a route variable unescaped; the router matches on the
// encoded path.
func (c *call) pathVar(name string) string {
	raw := mux.Vars(c.req)[name]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

type handlerFunc func(c *call) (any, error)

func (s *server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notices := &notify.Collector{}
		notifier := notify.Tee(s.notifier, notices)
		c := &call{
			req:      r,
			notices:  notices,
			notifier: notifier,
			codec:    codec.New(notifier),
		}

		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.WithField("panic", recovered).Error("handler panicked")
				s.writeJSON(w, http.StatusInternalServerError, envelope{
					Error:   fmt.Sprint(recovered),
					Code:    string(errdef.CodeUnknown),
					Notices: notices.Notices(),
				})
			}
		}()

		out, err := fn(c)
		if err != nil {
			status := statusFor(err)
			entry := s.log.WithError(err).WithField("path", r.URL.Path)
			if status >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Debug("request rejected")
			}
			s.writeJSON(w, status, envelope{
				Error:   errdef.Message(err),
				Code:    codeFor(err, status),
				Notices: notices.Notices(),
			})
			return
		}
		s.writeJSON(w, http.StatusOK, envelope{Data: out, Notices: notices.Notices()})
	}
}

func statusFor(err error) int {
	var hs httpStatuser
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	if errors.Is(err, executor.ErrSendInFlight) {
		return http.StatusConflict
	}
	switch errdef.CodeOf(err) {
	case errdef.CodeInvalidURL, errdef.CodeParse, errdef.CodeCodec:
		return http.StatusBadRequest
	case errdef.CodeHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error, status int) string {
	if code := errdef.CodeOf(err); code != errdef.CodeUnknown {
		return string(code)
	}
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusConflict:
		return "conflict"
	default:
		return string(errdef.CodeUnknown)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	if body.Notices == nil {
		body.Notices = []notify.Notice{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"status": status}).Warn("write response")
	}
}

func (s *server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("method not allowed")
	s.writeJSON(w, http.StatusMethodNotAllowed, envelope{
		Error: fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
		Code:  "method_not_allowed",
	})
}
