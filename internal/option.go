package internal

import (
	"io"

	"github.com/starford/studytrack/internal/gateway"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	gateway gateway.Gateway
	logOut  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithGateway uses gw instead of opening the configured backend.
func WithGateway(gw gateway.Gateway) Option {
	return func(a *application) {
		a.gateway = gw
	}
}

// WithLogOutput redirects the JSON log stream (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
