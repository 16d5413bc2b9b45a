package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/classgate"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return classgate.ErrMissingFields
		}
		return classgate.ErrInvalidInput
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{OK: true, Message: message, Data: data})
}

// writeError maps err to a status code and its fixed public message.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{OK: false, Message: classgate.PublicMessage(err)})
}

func statusFor(err error) int {
	switch classgate.ReasonOf(err) {
	case classgate.ReasonValidation:
		return http.StatusBadRequest
	case classgate.ReasonConflict:
		return http.StatusConflict
	case classgate.ReasonAuthentication:
		return http.StatusUnauthorized
	case classgate.ReasonRateLimited:
		return http.StatusTooManyRequests
	case classgate.ReasonNotFound:
		return http.StatusNotFound
	case classgate.ReasonDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
