package eventstore

import (
	"encoding/json"
	"time"
)

// Event type names.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeStageCompleted = "StageCompleted"
	TypeBuildCompleted = "BuildCompleted"
)

// BuildStartedData is the payload of a BuildStarted event.
type BuildStartedData struct {
	ExportPath string `json:"export_path"`
	OutputDir  string `json:"output_dir"`
	BaseURL    string `json:"base_url,omitempty"`
}

// StageCompletedData is the payload of a StageCompleted event.
type StageCompletedData struct {
	Stage      string  `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// BuildCompletedData is the payload of a BuildCompleted event.
type BuildCompletedData struct {
	Outcome      string  `json:"outcome"`
	DurationMS   float64 `json:"duration_ms"`
	Records      int     `json:"records"`
	Posts        int     `json:"posts"`
	Skipped      int     `json:"skipped"`
	Pages        int     `json:"pages"`
	MediaFetched int     `json:"media_fetched"`
	MediaFailed  int     `json:"media_failed"`
	SitemapURLs  int     `json:"sitemap_urls"`
	Findings     int     `json:"findings"`
	ErrorStage   string  `json:"error_stage,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID string, at time.Time, data BuildStartedData) (Event, error) {
	return newEvent(buildID, TypeBuildStarted, at, data)
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(buildID string, at time.Time, data StageCompletedData) (Event, error) {
	return newEvent(buildID, TypeStageCompleted, at, data)
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(buildID string, at time.Time, data BuildCompletedData) (Event, error) {
	return newEvent(buildID, TypeBuildCompleted, at, data)
}

func newEvent(buildID, eventType string, at time.Time, data any) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, wrap(ErrMarshalPayloadFailed, err)
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: at,
		EventPayload:   payload,
	}, nil
}
