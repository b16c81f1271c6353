package status

import (
	"context"
	"errors"
	"net/http"

	"github.com/carson-networks/ingest-server/internal/logging"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	checks []Pinger
}

func NewHandler(checks ...Pinger) Handler {
	return Handler{checks: checks}
}

func (h *Handler) Handler(w http.ResponseWriter, req *http.Request, logData *logging.LogData) error {
	if req.Method != "GET" {
		w.WriteHeader(http.StatusBadRequest)
		return errors.New("status: method not GET")
	}

	for _, check := range h.checks {
		if err := check.PingContext(req.Context()); err != nil {
			logData.AddData("unhealthy", err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			return nil
		}
	}

	w.WriteHeader(http.StatusOK)
	return nil
}
