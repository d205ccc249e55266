package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/boot"
	"github.com/nls90/bootplane/pkg/store"
)

// parseError is the 400 body for malformed requests and missing resources.
type parseError struct {
	Detail string `json:"detail"`
}

// resultEnvelope is the 200 body for refused state transitions.
type resultEnvelope struct {
	Result  bool   `json:"result"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.Errorf("Failed to encode response: %v", err)
	}
}

func writeText(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(fmt.Sprintf(format, args...)); err != nil {
		klog.Errorf("Failed to encode response: %v", err)
	}
}

func writeParseError(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, parseError{Detail: fmt.Sprintf(format, args...)})
}

// writeError maps the core error taxonomy onto HTTP. Missing rows and
// refused invariants surface as parse errors; refused state transitions as a
// result:false envelope; failed external commands as 417.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownStatus):
		writeParseError(w, "%v", err)
	case errors.Is(err, boot.ErrConflict):
		writeJSON(w, http.StatusOK, resultEnvelope{Result: false, Message: err.Error()})
	case errors.Is(err, boot.ErrExternal):
		writeText(w, http.StatusExpectationFailed, "%v", err)
	default:
		klog.Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, parseError{Detail: err.Error()})
	}
}

// pathID extracts the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed id %q", raw)
	}
	return id, nil
}

// decodeBody decodes the JSON request body into dst. An empty body is not an
// error; the zero value stays.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}
