// Package eventstore records build history as an append-only event log in
// SQLite and folds it back into per-build summaries.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// StatusRunning marks a build with no BuildCompleted event. Completed
// builds carry the outcome recorded by the build.
const StatusRunning = "running"

// StageSummary is one timed stage of a build.
type StageSummary struct {
	Stage      string  `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID      string         `json:"build_id"`
	ExportPath   string         `json:"export_path,omitempty"`
	OutputDir    string         `json:"output_dir,omitempty"`
	Status       string         `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Duration     time.Duration  `json:"duration,omitempty"`
	Posts        int            `json:"posts"`
	Skipped      int            `json:"skipped"`
	Pages        int            `json:"pages"`
	MediaFetched int            `json:"media_fetched"`
	MediaFailed  int            `json:"media_failed"`
	Findings     int            `json:"findings"`
	Stages       []StageSummary `json:"stages,omitempty"`
	ErrorStage   string         `json:"error_stage,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// BuildHistoryProjection rebuilds build summaries from the events in a store.
type BuildHistoryProjection struct {
	store  Store
	builds map[string]*BuildSummary
}

// NewBuildHistoryProjection creates a projection backed by store.
func NewBuildHistoryProjection(store Store) *BuildHistoryProjection {
	return &BuildHistoryProjection{store: store, builds: make(map[string]*BuildSummary)}
}

// Rebuild reconstructs every summary from all stored events.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}
	p.builds = make(map[string]*BuildSummary)
	for _, e := range events {
		p.Apply(e)
	}
	return nil
}

// Apply folds a single event into the projection.
func (p *BuildHistoryProjection) Apply(e Event) {
	buildID := e.BuildID()
	if buildID == "" {
		return
	}

	summary, ok := p.builds[buildID]
	if !ok {
		summary = &BuildSummary{BuildID: buildID, Status: StatusRunning, StartedAt: e.Timestamp()}
		p.builds[buildID] = summary
	}

	switch e.Type() {
	case TypeBuildStarted:
		var data BuildStartedData
		if err := json.Unmarshal(e.Payload(), &data); err == nil {
			summary.ExportPath = data.ExportPath
			summary.OutputDir = data.OutputDir
		}
		summary.StartedAt = e.Timestamp()

	case TypeStageCompleted:
		var data StageCompletedData
		if err := json.Unmarshal(e.Payload(), &data); err == nil {
			summary.Stages = append(summary.Stages, StageSummary(data))
		}

	case TypeBuildCompleted:
		at := e.Timestamp()
		summary.CompletedAt = &at
		summary.Duration = at.Sub(summary.StartedAt)
		var data BuildCompletedData
		if err := json.Unmarshal(e.Payload(), &data); err == nil {
			summary.Status = data.Outcome
			summary.Posts = data.Posts
			summary.Skipped = data.Skipped
			summary.Pages = data.Pages
			summary.MediaFetched = data.MediaFetched
			summary.MediaFailed = data.MediaFailed
			summary.Findings = data.Findings
			summary.ErrorStage = data.ErrorStage
			summary.ErrorMessage = data.Error
		}
	}
}

// GetHistory returns up to limit summaries, newest first. A limit of zero
// or less returns all of them.
func (p *BuildHistoryProjection) GetHistory(limit int) []BuildSummary {
	out := make([]BuildSummary, 0, len(p.builds))
	for _, s := range p.builds {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].BuildID < out[j].BuildID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetBuild returns a copy of the summary for buildID.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}
