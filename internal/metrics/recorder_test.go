package metrics

import (
	"sync"
	"time"
)

// testRecorder counts calls; other packages' tests rely on the Recorder
// contract only.
type testRecorder struct {
	mu             sync.Mutex
	stageDurations map[string]int
	stageResults   map[string]map[ResultLabel]int
	buildDurations int
	buildOutcomes  map[string]int
}

var _ Recorder = (*testRecorder)(nil)

func newTestRecorder() *testRecorder {
	return &testRecorder{stageDurations: map[string]int{}, stageResults: map[string]map[ResultLabel]int{}, buildOutcomes: map[string]int{}}
}

func (t *testRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stageDurations[stage]++
}

func (t *testRecorder) ObserveBuildDuration(_ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildDurations++
}

func (t *testRecorder) IncStageResult(stage string, result ResultLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.stageResults[stage]
	if !ok {
		m = map[ResultLabel]int{}
		t.stageResults[stage] = m
	}
	m[result]++
}

func (t *testRecorder) IncBuildOutcome(outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildOutcomes[outcome]++
}

func (t *testRecorder) SetPostCounts(int, int)        {}
func (t *testRecorder) AddMediaResults(int, int, int) {}
func (t *testRecorder) SetAuditFindings(string, int)  {}
