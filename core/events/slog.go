package events

import (
	"log/slog"

	"chronicle/core/types"
)

// Renderer is implemented by events that can flatten themselves into a
// generic attribute map for transport or logging.
type Renderer interface {
	Event() *types.Event
}

// SlogEmitter writes every emitted event to a structured logger. It is the
// default sink for daemons that have no dedicated indexer attached, so state
// changes still land in the audit log.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter builds an emitter over logger; a nil logger falls back to
// the process default.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit implements the Emitter interface.
func (e *SlogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if renderer, ok := evt.(Renderer); ok {
		if rendered := renderer.Event(); rendered != nil {
			for key, value := range rendered.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	e.logger.Info("chronicle event", attrs...)
}
