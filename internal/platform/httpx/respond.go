// Package httpx provides HTTP response utilities following RFC7807
// problem details.
package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

const problemContentType = "application/problem+json"

// ProblemDetail represents RFC7807 problem details. Type carries a
// stable machine-readable identifier derived from the title.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Type:   problemType(title),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// problemType derives the stable identifier clients match on, e.g.
// "Module Quota Exceeded" becomes "meridian:problem:module-quota-exceeded".
func problemType(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.ReplaceAll(slug, " ", "-")
	if slug == "" {
		return "about:blank"
	}
	return "meridian:problem:" + slug
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
