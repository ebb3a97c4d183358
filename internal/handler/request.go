package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/job-tracker/internal/apperror"
)

// maxBodyBytes caps request bodies. Records are a handful of short strings,
// so 1 MiB is generous.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst.
//
// http.MaxBytesReader stops a client from streaming an endless body at us;
// past the limit Decode fails and the client gets a 400 like any other bad
// body. An empty body is reported as such instead of as "EOF".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is required")
		}
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return nil
}

// dateLayouts are tried in order by parseDate.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// parseDate accepts a calendar date ("2024-03-01") or a full RFC 3339
// timestamp. An empty string yields the zero time, which the service's
// required check reports as a missing field.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.ValidationFailed(field, field+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
