package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/services"
)

const maxBodyBytes = 64 << 10

// errNotRoutable marks path parameters naming something that does not exist.
var errNotRoutable = errors.New("not found")

// recordRequest is the body of POST and PUT requests. Amount is either a
// decimal string ("12.34" or "12,34") or an integer number of cents.
type recordRequest struct {
	Amount     json.RawMessage `json:"amount"`
	Category   string          `json:"category"`
	Note       string          `json:"note"`
	OccurredAt string          `json:"occurred_at"`
}

// parseRecord decodes a record body. Syntax errors are bad requests;
// unusable values are invalid records.
func parseRecord(r *http.Request, loc *time.Location) (core.Record, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return core.Record{}, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var req recordRequest
	if err := dec.Decode(&req); err != nil {
		return core.Record{}, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Record{}, fmt.Errorf("%w: %w", services.ErrInvalidRecord, err)
	}
	occurred, err := parseOccurredAt(req.OccurredAt, loc)
	if err != nil {
		return core.Record{}, fmt.Errorf("%w: %w", services.ErrInvalidRecord, err)
	}

	return core.Record{
		Amount:           amount,
		Category:         strings.ToUpper(strings.TrimSpace(req.Category)),
		Note:             sanitizeInput(req.Note),
		OccurredAtMillis: occurred.UnixMilli(),
	}, nil
}

func parseAmount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, core.ErrInvalidAmount
		}
		if isZeroDecimal(s) {
			return 0, nil
		}
		return core.ParseDecimalToCents(s)
	}
	cents, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be integer cents or a decimal string", core.ErrInvalidAmount, raw)
	}
	if cents < 0 {
		return 0, core.ErrInvalidAmount
	}
	return cents, nil
}

// isZeroDecimal reports whether s spells zero, like "0", "0.00" or "0,0".
func isZeroDecimal(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	seenSep := false
	for _, c := range s {
		switch {
		case c == '0':
		case (c == '.' || c == ',') && !seenSep:
			seenSep = true
		default:
			return false
		}
	}
	return true
}

// parseOccurredAt accepts RFC 3339 or a plain date, read as local midnight.
func parseOccurredAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: occurred_at is required", core.ErrInvalidTimestamp)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is neither RFC 3339 nor YYYY-MM-DD", core.ErrInvalidTimestamp, s)
}

func periodParam(r *http.Request) (period.Key, error) {
	return period.Parse(chi.URLParam(r, "period"))
}

// kindParam maps the {kind} path segment (expenses or income).
func kindParam(r *http.Request) (core.Kind, error) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNotRoutable, err)
	}
	return kind, nil
}

func categoryParam(r *http.Request) (core.Category, error) {
	c, err := core.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNotRoutable, err)
	}
	return c, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, name)
	}
	return b, nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
