package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. The read timeout is generous because document
// submissions stream multipart bodies up to the 5MB ceiling; the write timeout
// bounds slow readers of list responses.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
