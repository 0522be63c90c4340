package handlers

import (
	"net/http"
)

const demoGreeting = "Welcome from secure endpoint"

// Demo answers authenticated callers with a fixed greeting.
func Demo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(demoGreeting))
}
