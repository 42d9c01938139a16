package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Stage names one state of the ingestion state machine.
type Stage string

const (
	StageInit        Stage = "init"
	StageHomepage    Stage = "homepage_load"
	StageAssets      Stage = "asset_extraction"
	StageLinks       Stage = "link_discovery"
	StageCollection  Stage = "collection_load"
	StageProducts    Stage = "product_page_load"
	StageEnhancement Stage = "enhancement"
	StageFinalize    Stage = "finalize"
	StageFallback    Stage = "fallback"
)

// EventKind classifies an observability event.
type EventKind string

const (
	EventStageStart EventKind = "stage_start"
	EventStageSkip  EventKind = "stage_skip"
	EventStageError EventKind = "stage_error"
	EventStageDone  EventKind = "stage_done"
	EventFallback   EventKind = "fallback"
)

// Event is one structured observation emitted by the pipeline.
type Event struct {
	Kind    EventKind
	Stage   Stage
	URL     string
	Code    string
	Message string
	Elapsed time.Duration
	// Remaining is the budget left when the event fired.
	Remaining time.Duration
}

// Observer receives pipeline events. Implementations must not block and
// must not influence control flow.
type Observer interface {
	Event(ctx context.Context, e Event)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Event(context.Context, Event) {}

// SlogObserver renders events as structured log records.
type SlogObserver struct {
	Logger *slog.Logger
}

// NewSlogObserver returns an observer writing to logger, or to the default
// logger when logger is nil.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{Logger: logger}
}

func (o *SlogObserver) Event(ctx context.Context, e Event) {
	attrs := []slog.Attr{
		slog.String("event", string(e.Kind)),
		slog.String("stage", string(e.Stage)),
		slog.String("url", e.URL),
		slog.Int64("elapsed_ms", e.Elapsed.Milliseconds()),
		slog.Int64("remaining_ms", e.Remaining.Milliseconds()),
	}
	if e.Code != "" {
		attrs = append(attrs, slog.String("code", e.Code))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("message", e.Message))
	}

	level := slog.LevelDebug
	switch e.Kind {
	case EventStageError:
		level = slog.LevelWarn
	case EventFallback:
		level = slog.LevelError
	case EventStageSkip:
		level = slog.LevelInfo
	}
	o.Logger.LogAttrs(ctx, level, "ingest "+string(e.Kind), attrs...)
}
