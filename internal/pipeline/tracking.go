package pipeline

import (
	"log"
	"sync"
	"time"

	"usage-analytics/internal/model"
)

// Build stages.
const (
	StageLoad = "load"
	StageJoin = "join"
)

// Stage statuses.
const (
	StageRunning   = "running"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// LoadTracker times the stages of one snapshot build.
type LoadTracker struct {
	ID        string
	StartTime time.Time

	mu     sync.RWMutex
	stages map[string]*stageMetrics
	order  []string
}

type stageMetrics struct {
	start   time.Time
	end     *time.Time
	records int64
	status  string
	err     string
}

// NewLoadTracker starts tracking a build.
func NewLoadTracker(id string) *LoadTracker {
	return &LoadTracker{
		ID:        id,
		StartTime: time.Now(),
		stages:    make(map[string]*stageMetrics),
	}
}

// StartStage marks the beginning of a stage.
func (lt *LoadTracker) StartStage(stage string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if _, ok := lt.stages[stage]; !ok {
		lt.order = append(lt.order, stage)
	}
	lt.stages[stage] = &stageMetrics{start: time.Now(), status: StageRunning}
}

// EndStage marks a stage as completed with the number of records it
// produced.
func (lt *LoadTracker) EndStage(stage string, records int64) {
	lt.finish(stage, records, StageCompleted, "")
}

// FailStage marks a stage as failed.
func (lt *LoadTracker) FailStage(stage string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	lt.finish(stage, 0, StageFailed, msg)
	log.Printf("❌ Stage %s failed for build %s: %v", stage, lt.ID, err)
}

func (lt *LoadTracker) finish(stage string, records int64, status, errMsg string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	sm, ok := lt.stages[stage]
	if !ok {
		lt.order = append(lt.order, stage)
		sm = &stageMetrics{start: time.Now()}
		lt.stages[stage] = sm
	}
	now := time.Now()
	sm.end = &now
	sm.records = records
	sm.status = status
	sm.err = errMsg
}

// Stages returns the stage timings in the order they were started.
func (lt *LoadTracker) Stages() []model.StageTiming {
	lt.mu.RLock()
	defer lt.mu.RUnlock()
	out := make([]model.StageTiming, 0, len(lt.order))
	for _, name := range lt.order {
		sm := lt.stages[name]
		timing := model.StageTiming{
			Stage:   name,
			Status:  sm.status,
			Records: sm.records,
			Error:   sm.err,
		}
		if sm.end != nil {
			timing.Duration = sm.end.Sub(sm.start)
		} else {
			timing.Duration = time.Since(sm.start)
		}
		out = append(out, timing)
	}
	return out
}

// Duration is the time since the tracker was created.
func (lt *LoadTracker) Duration() time.Duration {
	return time.Since(lt.StartTime)
}
