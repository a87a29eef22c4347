package server

import (
	"time"

	"github.com/teranos/opsgate/operation"
)

const (
	// ShutdownTimeout bounds graceful shutdown. An in-flight email send is
	// not cancelled, so this should exceed a typical batch.
	ShutdownTimeout = 60 * time.Second

	// HTTP server timeouts
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 120 * time.Second
	IdleTimeout       = 120 * time.Second
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// HealthResponse is returned by GET /_/health
type HealthResponse struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	Commit       string   `json:"commit"`
	Capabilities []string `json:"capabilities"`
	Operations   int      `json:"operations"`
	QueueLength  int      `json:"queue_length"`
	Sending      bool     `json:"sending"`
}

// OperationsResponse is returned by GET /_/operations
type OperationsResponse struct {
	Operations []operation.Info `json:"operations"`
	Count      int              `json:"count"`
}
