package app

import (
	"github.com/datallboy/gopatch/internal/core"
	"github.com/datallboy/gopatch/internal/events"
	"github.com/datallboy/gopatch/internal/infra/config"
	"github.com/datallboy/gopatch/internal/infra/logger"
	"github.com/datallboy/gopatch/internal/store"
)

// Context holds the core environment and shared resources for gopatch.
// It acts as the single source of truth for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Events *events.Bus

	Core  *core.Core
	Store *store.PersistentStore
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger, bus *events.Bus) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
		Events: bus,
	}
}
