package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/server/auth"
	"github.com/dmitrijs2005/finkeeper/internal/server/records"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

const maxBodyBytes = 8 << 20

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return fmt.Sprintf("%d: %s", e.status, e.msg) }

func newHTTPError(status int, format string, args ...any) error {
	return &httpError{status: status, msg: fmt.Sprintf(format, args...)}
}

func (s *HTTPServer) wrap(name string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := h(w, r)
		if err == nil {
			s.logger.Debug(r.Context(), "handler complete", "handler", name, "duration", time.Since(start))
			return
		}

		var he *httpError
		if !errors.As(err, &he) {
			s.logger.Error(r.Context(), "handler error", "handler", name, "error", err)
			he = &httpError{status: http.StatusInternalServerError, msg: "internal error"}
		} else {
			s.logger.Warn(r.Context(), "request refused", "handler", name, "status", he.status, "error", he.msg)
		}
		writeJSON(w, he.status, shared.ErrorResponse{Error: he.msg})
	}
}

func (s *HTTPServer) authenticated(h handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if len(s.jwtSecret) == 0 {
			ctx := auth.WithDeviceID(r.Context(), r.Header.Get(common.DeviceIDHeaderName))
			return h(w, r.WithContext(ctx))
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			return newHTTPError(http.StatusUnauthorized, "missing token")
		}
		deviceID, err := auth.GetDeviceIDFromToken(token, s.jwtSecret)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return newHTTPError(http.StatusUnauthorized, "%s", common.ErrTokenExpired)
			}
			return newHTTPError(http.StatusUnauthorized, "%s", common.ErrInvalidToken)
		}
		return h(w, r.WithContext(auth.WithDeviceID(r.Context(), deviceID)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) ping(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, shared.PingResponse{Status: "ok"})
	return nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, newHTTPError(http.StatusBadRequest, "invalid %s", name)
	}
	return v, nil
}

func (s *HTTPServer) pull(w http.ResponseWriter, r *http.Request) error {
	lastPulledAt, err := queryInt64(r, "lastPulledAt")
	if err != nil {
		return err
	}
	schemaVersion, err := queryInt64(r, "schemaVersion")
	if err != nil {
		return err
	}

	resp, err := s.records.Pull(r.Context(), auth.DeviceIDFromContext(r.Context()), lastPulledAt, int(schemaVersion))
	if err != nil {
		return mapError(err)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *HTTPServer) push(w http.ResponseWriter, r *http.Request) error {
	var req shared.PushRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return newHTTPError(http.StatusBadRequest, "malformed push request")
	}

	resp, err := s.records.Push(r.Context(), auth.DeviceIDFromContext(r.Context()), &req)
	if err != nil {
		return mapError(err)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func mapError(err error) error {
	if errors.Is(err, records.ErrBadRequest) {
		return newHTTPError(http.StatusBadRequest, "%s", err.Error())
	}
	return err
}
