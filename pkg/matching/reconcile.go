package matching

import (
	"context"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/observability"
)

// eventDateLayout is the layout of MatchedRecord.EventDate.
const eventDateLayout = "2006-01-02"

// Result is the outcome of one reconciliation.
type Result struct {
	Run     *Run            `json:"run" yaml:"run"`
	Records []MatchedRecord `json:"records" yaml:"records"`
}

// Reconciler pairs listing events with indexed artifacts.
type Reconciler struct {
	index    *meeting.FileIndex
	texts    TextSource
	opts     Options
	logger   logging.Logger
	scorer   *Scorer
	resolver *GroupResolver
	content  ContentScorer
	metrics  *observability.MatchMetrics
	tracer   *observability.Tracer
}

// NewReconciler creates a reconciler over index, reading transcripts from
// texts.
func NewReconciler(index *meeting.FileIndex, texts TextSource, opts Options, logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	scorer := NewScorer(opts.Metric)
	return &Reconciler{
		index:    index,
		texts:    texts,
		opts:     opts,
		logger:   logger.With(logging.F("component", "matching")),
		scorer:   scorer,
		resolver: NewGroupResolver(index, scorer, opts.FuzzyThreshold, opts.Variations),
		content:  NewValidator(texts),
		tracer:   observability.NewTracer(),
	}
}

// WithMetrics records match metrics to m.
func (r *Reconciler) WithMetrics(m *observability.MatchMetrics) *Reconciler {
	r.metrics = m
	return r
}

// WithTracer replaces the default tracer.
func (r *Reconciler) WithTracer(t *observability.Tracer) *Reconciler {
	r.tracer = t
	return r
}

// WithContentScorer replaces transcript validation.
func (r *Reconciler) WithContentScorer(c ContentScorer) *Reconciler {
	r.content = c
	return r
}

// runState is the bookkeeping of one reconciliation. The used set and the
// owner map are only touched through claim and release.
type runState struct {
	events  []meeting.Event
	used    UsedSet
	owner   map[string]int
	matches map[int]Pairing
}

func (s *runState) claim(p Pairing) {
	s.used.Add(p.Artifact.Stem)
	s.owner[p.Artifact.Stem] = p.EventPos
	s.matches[p.EventPos] = p
}

func (s *runState) release(pos int) {
	p, ok := s.matches[pos]
	if !ok {
		return
	}
	delete(s.matches, pos)
	delete(s.owner, p.Artifact.Stem)
	delete(s.used, p.Artifact.Stem)
}

func (s *runState) matched(pos int) bool {
	_, ok := s.matches[pos]
	return ok
}

// Reconcile pairs events with artifacts and returns one record per event
// in listing order. run may be nil, in which case a new run is started.
func (r *Reconciler) Reconcile(ctx context.Context, run *Run, events []meeting.Event) *Result {
	if run == nil {
		run = NewRun("", "")
	}
	ctx = logging.ContextWithRunID(ctx, run.ID)

	ctx, span := r.tracer.StartReconcileSpan(ctx, run.ID, len(events), r.index.Len())
	defer span.End()
	helper := observability.NewSpanHelper(span)

	log := r.logger.WithContext(ctx)
	log.Info("Reconciling",
		logging.F("events", len(events)),
		logging.F("groups", r.index.Len()),
		logging.F("artifacts", r.index.ArtifactCount()),
	)
	r.metrics.RecordInputs(len(events), r.index.Len())

	state := &runState{
		events:  events,
		used:    NewUsedSet(),
		owner:   make(map[string]int),
		matches: make(map[int]Pairing),
	}
	content := &observedScorer{inner: r.content, metrics: r.metrics}

	r.applyOverrides(ctx, state)
	r.assignGroups(ctx, state, content)
	r.recover(ctx, state, content)
	r.fallback(ctx, state)

	records := r.buildRecords(state)
	run.Finish(ComputeStats(records))

	for _, rec := range records {
		r.metrics.RecordEvent(rec.HasRecording, string(rec.MatchMethod))
	}
	r.metrics.RecordRun(run.Duration())
	helper.SetPairing(run.Stats.WithRecording)
	helper.SetSuccess()

	log.Info("Reconciled",
		logging.F("total", run.Stats.Total),
		logging.F("with_recording", run.Stats.WithRecording),
		logging.F("without_recording", run.Stats.WithoutRecording),
	)
	return &Result{Run: run, Records: records}
}

func (r *Reconciler) applyOverrides(ctx context.Context, state *runState) {
	if len(r.opts.Overrides) == 0 {
		return
	}
	_, span := r.tracer.StartOverridesSpan(ctx)
	defer span.End()

	applied := 0
	for pos, ev := range state.events {
		o, ok := FindOverride(r.opts.Overrides, ev)
		if !ok {
			continue
		}
		a, ok := r.index.Artifact(o.File)
		if !ok || state.used.Has(a.Stem) {
			r.logger.Warn("Override target unavailable",
				logging.F("event", ev.Name),
				logging.F("date", ev.Date),
				logging.F("file", o.File),
				logging.F("exists", ok),
			)
			r.metrics.RecordOverrideMiss()
			continue
		}
		state.claim(Pairing{EventPos: pos, Artifact: a, Method: MethodOverride, Score: 1.0})
		applied++
		r.logger.Debug("Override applied", logging.F("event", ev.Name), logging.F("file", a.Stem))
	}
	observability.NewSpanHelper(span).SetPairing(applied)
}

// nameGroup is the events sharing one normalized name, in listing order.
type nameGroup struct {
	name   string
	events []GroupEvent
}

func (r *Reconciler) groupEvents(state *runState) []nameGroup {
	var groups []nameGroup
	byName := make(map[string]int)
	for pos, ev := range state.events {
		if state.matched(pos) {
			continue
		}
		key := NormalizeName(ev.Name)
		i, ok := byName[key]
		if !ok {
			i = len(groups)
			byName[key] = i
			groups = append(groups, nameGroup{name: key})
		}
		groups[i].events = append(groups[i].events, GroupEvent{Pos: pos, Event: ev})
	}
	return groups
}

func (r *Reconciler) assignGroups(ctx context.Context, state *runState, content ContentScorer) {
	assigner := NewAssigner(content, r.opts.CompetitiveThreshold, r.opts.NoSummaryFallback)

	for _, g := range r.groupEvents(state) {
		fg, score, ok := r.resolver.GroupFor(g.events[0].Event.Name)
		if !ok {
			r.logger.Debug("No file group", logging.F("group", g.name), logging.F("best_score", score))
			continue
		}

		_, span := r.tracer.StartGroupSpan(ctx, g.name, len(g.events), len(fg.Artifacts))
		pairings := assigner.AssignGroup(g.events, fg.Artifacts, state.used)
		for _, p := range pairings {
			state.claim(p)
		}
		observability.NewSpanHelper(span).SetPairing(len(pairings))
		span.End()

		r.logger.Debug("Group assigned",
			logging.F("group", g.name),
			logging.F("file_group", fg.Name),
			logging.F("events", len(g.events)),
			logging.F("paired", len(pairings)),
		)
	}
}

// stealable reports whether a recovered event may take stem from its
// current owner. Overrides and earlier recoveries keep their artifacts.
func (s *runState) stealable(stem string) bool {
	pos, ok := s.owner[stem]
	if !ok {
		return false
	}
	m := s.matches[pos].Method
	return m != MethodOverride && m != MethodRecovery
}

// recoveryPick tracks the highest-scoring candidate above a threshold.
// Equal scores go to the lexically smaller stem.
type recoveryPick struct {
	artifact meeting.FileArtifact
	score    float64
	found    bool
}

func (p *recoveryPick) consider(a meeting.FileArtifact, score, threshold float64) {
	if score <= threshold {
		return
	}
	if p.found && (score < p.score || (score == p.score && a.Stem >= p.artifact.Stem)) {
		return
	}
	p.artifact, p.score, p.found = a, score, true
}

func (r *Reconciler) recover(ctx context.Context, state *runState, content ContentScorer) {
	for pos, ev := range state.events {
		if state.matched(pos) || !ev.HasSummary() {
			continue
		}

		_, span := r.tracer.StartRecoverySpan(ctx, ev.Name)
		helper := observability.NewSpanHelper(span)

		var unused, stolen recoveryPick
		for _, a := range r.resolver.RecoveryCandidates(ev.Name) {
			used := state.used.Has(a.Stem)
			if used && !state.stealable(a.Stem) {
				continue
			}
			score := content.Score(ev, a)
			if used {
				stolen.consider(a, score, r.opts.RecoveryReuseThreshold)
			} else {
				unused.consider(a, score, r.opts.RecoveryUnusedThreshold)
			}
		}

		pick := unused
		if stolen.found && (!unused.found || stolen.score > unused.score) {
			pick = stolen
		}
		best, bestScore, found := pick.artifact, pick.score, pick.found

		if found {
			if prev, taken := state.owner[best.Stem]; taken {
				r.logger.Info("Reassigning artifact",
					logging.F("file", best.Stem),
					logging.F("from_event", state.events[prev].Name),
					logging.F("to_event", ev.Name),
					logging.F("score", bestScore),
				)
				state.release(prev)
			}
			state.claim(Pairing{EventPos: pos, Artifact: best, Method: MethodRecovery, Score: bestScore})
			helper.SetMatch(string(MethodRecovery), bestScore)
		}
		span.End()
	}
}

func (r *Reconciler) fallback(ctx context.Context, state *runState) {
	for pos, ev := range state.events {
		if state.matched(pos) {
			continue
		}
		fg, score, ok := r.resolver.FuzzyGroup(ev.Name)
		if !ok {
			continue
		}
		for _, a := range fg.Artifacts {
			if state.used.Has(a.Stem) {
				continue
			}
			state.claim(Pairing{EventPos: pos, Artifact: a, Method: MethodFuzzyFallback, Score: score})
			break
		}
	}
	if n := len(state.events) - len(state.matches); n > 0 {
		r.logger.WithContext(ctx).Debug("Events without recording", logging.F("count", n))
	}
}

func (r *Reconciler) buildRecords(state *runState) []MatchedRecord {
	records := make([]MatchedRecord, 0, len(state.events))
	for pos, ev := range state.events {
		rec := MatchedRecord{
			ID:       len(records),
			Name:     ev.Name,
			Time:     ev.Time,
			Duration: ev.Duration,
			Attendee: ev.Attendee,
			Summary:  ev.Summary,
			Date:     ev.Date,
		}
		if t, ok := meeting.ParseEventDate(ev.Date); ok {
			rec.EventDate = t.Format(eventDateLayout)
		}
		if p, ok := state.matches[pos]; ok {
			artifact := p.Artifact
			rec.HasRecording = true
			rec.File = &artifact
			rec.MatchMethod = p.Method
			rec.MatchScore = p.Score
			if artifact.HasText() && r.texts != nil {
				if text, ok := r.texts.ReadText(artifact.TextPath); ok {
					rec.TranscriptSearch = meeting.Excerpt(text, r.opts.ExcerptChars)
				}
			}
		}
		records = append(records, rec)
	}
	return records
}

// observedScorer records every content score to metrics.
type observedScorer struct {
	inner   ContentScorer
	metrics *observability.MatchMetrics
}

func (o *observedScorer) Score(ev meeting.Event, a meeting.FileArtifact) float64 {
	score := o.inner.Score(ev, a)
	o.metrics.RecordValidationScore(score)
	return score
}
