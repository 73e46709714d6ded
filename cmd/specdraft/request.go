package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/specdraft/internal/specdecode"
)

// readRequest loads an ExecutionRequest from path, or stdin for "-". A
// request without num_lookahead_slots gets defaultLookahead.
func readRequest(path string, defaultLookahead int) (specdecode.ExecutionRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return specdecode.ExecutionRequest{}, fmt.Errorf("read request: %w", err)
	}
	var req specdecode.ExecutionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return specdecode.ExecutionRequest{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	// An explicit zero is a valid empty round; only a missing field takes
	// the default.
	var slots struct {
		NumLookaheadSlots *int `json:"num_lookahead_slots"`
	}
	if err := json.Unmarshal(data, &slots); err != nil {
		return specdecode.ExecutionRequest{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	if req.ID == "" {
		req.ID = "req_" + uuid.NewString()
	}
	if slots.NumLookaheadSlots == nil {
		req.NumLookaheadSlots = defaultLookahead
	}
	if req.NumLookaheadSlots < 0 {
		return specdecode.ExecutionRequest{}, specdecode.ErrInvalidSampleLen
	}
	return req, nil
}

// parseBonus parses a comma separated list of sequence ids.
func parseBonus(list string) (specdecode.BonusTokenSet, error) {
	var ids []specdecode.SequenceID
	for field := range strings.SplitSeq(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bonus sequence id %q: %w", field, err)
		}
		ids = append(ids, specdecode.SequenceID(id))
	}
	return specdecode.NewBonusTokenSet(ids...), nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
