// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for reading request bodies, path ids and
// query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"saldo/internal/core"
)

const (
	maxBodyBytes     = 1 << 20
	maxSnapshotBytes = 32 << 20
)

// decodeJSON reads one JSON object from the request body into v. Unknown
// fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

// isYAML reports whether the media type names YAML.
func isYAML(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return true
	}
	return false
}

// decodeSnapshot reads a snapshot in JSON or YAML, chosen by Content-Type.
func decodeSnapshot(w http.ResponseWriter, r *http.Request) (core.Snapshot, error) {
	var snap core.Snapshot
	body := http.MaxBytesReader(w, r.Body, maxSnapshotBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		return snap, err
	}
	if len(data) == 0 {
		return snap, errors.New("request body is empty")
	}
	if isYAML(r.Header.Get("Content-Type")) {
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return snap, fmt.Errorf("invalid YAML snapshot: %w", err)
		}
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("invalid JSON snapshot: %w", err)
	}
	return snap, nil
}

// wantsYAML reports whether the client asked for YAML via ?format=yaml or Accept.
func wantsYAML(r *http.Request) bool {
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		return f == "yaml" || f == "yml"
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if isYAML(strings.TrimSpace(part)) {
			return true
		}
	}
	return false
}

// pathID returns the {id} route parameter.
func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// DateRange is a closed window of calendar days. Empty bounds are open.
type DateRange struct {
	From core.Date
	To   core.Date
}

// ParseDateRange reads from and to (YYYY-MM-DD) from the query, falling back
// to the given defaults.
func ParseDateRange(query url.Values, defaults DateRange) (DateRange, error) {
	out := defaults
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return out, invalid("from", err)
		}
		out.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return out, invalid("to", err)
		}
		out.To = d
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From.Time) {
		return out, invalid("to", core.ErrInvalidWindow)
	}
	return out, nil
}

// ParseCurrency reads a currency code from the query, upper-casing it.
func ParseCurrency(query url.Values, key, fallback string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(query.Get(key)))
	if code == "" {
		code = fallback
	}
	if err := core.ValidateCurrency(code); err != nil {
		return "", invalid(key, err)
	}
	return code, nil
}
