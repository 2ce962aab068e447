package server

import (
	"io"
	"log"
	"os"
)

// Package-level loggers. debugLog is discarded unless debug logging is
// enabled; tests point both at io.Discard.
var (
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
)

// EnableDebugLogging routes debug output to stderr.
func (s *Server) EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
}
