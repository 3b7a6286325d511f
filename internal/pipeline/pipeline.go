package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"usage-analytics/internal/model"
	"usage-analytics/internal/store"
)

// Snapshot is one build of the feature table together with the raw tables
// it came from. Snapshots are never mutated once built.
type Snapshot struct {
	ID       string
	Key      string
	BuiltAt  time.Time
	Tables   Tables
	Excluded map[string]struct{}
	Features *model.FeatureTable
	Report   model.LoadReport
}

// Options configures a Builder.
type Options struct {
	DataDir      string
	DenyListFile string
	Rules        ExclusionRules
	// Limit caps concurrent table loads; zero keeps the registry default.
	Limit int
}

// Builder runs load -> exclusion -> join over one data directory.
type Builder struct {
	Registry     *Registry
	Rules        ExclusionRules
	DenyListFile string
}

// NewBuilder returns a builder for opts. Rules without any marker fall back
// to DefaultExclusionRules.
func NewBuilder(opts Options) *Builder {
	reg := NewRegistry(opts.DataDir)
	if opts.Limit > 0 {
		reg.Limit = opts.Limit
	}
	rules := opts.Rules
	if len(rules.EmailMarkers) == 0 && len(rules.SlugMarkers) == 0 {
		rules = DefaultExclusionRules()
	}
	return &Builder{Registry: reg, Rules: rules, DenyListFile: opts.DenyListFile}
}

// Key is the signature of the builder's inputs as they are on disk now.
func (b *Builder) Key() string {
	return SignatureKey(b.Registry.Signatures(), statSignature(b.DenyListFile, "deny_list"))
}

// Build loads every table and joins them into a new snapshot stamped with
// key. Only cancellation aborts a build; missing or broken tables are
// recorded in the report.
func (b *Builder) Build(ctx context.Context, key string) (*Snapshot, error) {
	snap := &Snapshot{ID: uuid.New().String(), Key: key}
	tracker := NewLoadTracker(snap.ID)
	log.Printf("🚀 Building snapshot %s from %s", snap.ID, b.Registry.Dir)

	tracker.StartStage(StageLoad)
	tables, reports, err := b.Registry.Load(ctx)
	if err != nil {
		tracker.FailStage(StageLoad, err)
		return nil, fmt.Errorf("load tables: %w", err)
	}
	var rows int64
	for _, r := range reports {
		rows += int64(r.Rows)
	}
	tracker.EndStage(StageLoad, rows)

	tracker.StartStage(StageJoin)
	rules := b.Rules.WithDenyList(b.DenyListFile)
	features, exclusion := Join(tables, rules)
	tracker.EndStage(StageJoin, int64(features.Len()))

	snap.Tables = tables
	snap.Excluded = rules.DenyList
	snap.Features = features
	snap.BuiltAt = time.Now().UTC()
	snap.Report = model.LoadReport{
		SnapshotID: snap.ID,
		Key:        key,
		BuiltAt:    snap.BuiltAt,
		Duration:   tracker.Duration(),
		Origin:     features.Origin,
		Companies:  features.Len(),
		Exclusion:  exclusion,
		Tables:     reports,
		Stages:     tracker.Stages(),
	}

	if missing := snap.Report.Missing(); len(missing) > 0 {
		log.Printf("⚠️ Tables not loaded: %v", missing)
	}
	if store.Enabled() {
		if err := store.SaveLoad(snap.Report); err != nil {
			log.Printf("[WARNING] Could not record load %s: %v", snap.ID, err)
		}
	}
	log.Printf("🏁 Snapshot %s ready: %d companies in %v", snap.ID, snap.Report.Companies, snap.Report.Duration)
	return snap, nil
}

// Run builds a single snapshot from opts.
func Run(ctx context.Context, opts Options) (*Snapshot, error) {
	b := NewBuilder(opts)
	return b.Build(ctx, b.Key())
}
