package api

import (
	"context"
	"net/http"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/dispatch"
	"github.com/vibe-control/vcc/internal/pattern"
)

// EnginePort is what the handlers need from the dispatch engine.
type EnginePort interface {
	Submit(ctx context.Context, cmd command.Command, source dispatch.Source) error
	Play(ctx context.Context, pat *pattern.Pattern) error
	Stop(ctx context.Context, source dispatch.Source) error
	State() dispatch.State
}

// StatusPort is what the handlers need from the status hub.
type StatusPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// CatalogPort is what the handlers need from the pattern store.
type CatalogPort interface {
	Catalog() []*pattern.Pattern
	Find(name string) (*pattern.Pattern, error)
	Reload() (int, map[string]error)
}
