// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeBadRequest writes a 400 response with the error message.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeNotFound writes a 404 Not Found response.
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// writeInternalError writes a 500 response without leaking details.
func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// writeRangeNotSatisfiable writes a 416 response naming the total resource
// size per RFC 9110.
func writeRangeNotSatisfiable(w http.ResponseWriter, contentLength int64) {
	w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", contentLength))
	writeJSON(w, http.StatusRequestedRangeNotSatisfiable, map[string]string{"error": "range not satisfiable"})
}
