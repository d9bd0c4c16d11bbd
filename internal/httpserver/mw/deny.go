package mw

import (
	"net/http"
	"strconv"
)

// deny writes the API error body used by every handler.
func deny(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"detail":` + strconv.Quote(http.StatusText(status)) + "}\n"))
}
