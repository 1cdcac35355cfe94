package httpserver

import (
	"net/http"
	"time"
)

// writeTimeout covers the admin trigger, which runs a whole deletion batch
// before it answers.
const writeTimeout = 2 * time.Minute

// New builds the HTTP server. Slow clients are cut off at the header stage.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    16 << 10,
	}
}
