package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/specdraft/internal/specdecode"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return writeJSON(c, status, map[string]any{
		"error": ErrorBody{
			Message: msg,
			Type:    errType,
		},
	})
}

func writeFailure(c *echo.Context, err error) error {
	status, errType := classify(err)
	return writeError(c, status, errType, err.Error())
}

func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	_, err = res.Write(b)
	return err
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// prepareRequest fills in a request ID and validates the batch shape.
func prepareRequest(req *specdecode.ExecutionRequest) error {
	if req.ID == "" {
		req.ID = "req_" + uuid.NewString()
	}
	if req.NumLookaheadSlots < 0 {
		return newInvalidRequest("num_lookahead_slots must be non-negative")
	}
	seen := make(map[specdecode.SequenceID]struct{}, req.BatchSize())
	for _, s := range req.Sequences() {
		if _, dup := seen[s.ID]; dup {
			return newInvalidRequest("duplicate sequence id in request")
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
