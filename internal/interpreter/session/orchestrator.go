// Package session runs the interpretation pipeline for one drawing sheet
// and records each run in the session history.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drawing-interpreter/internal/interpreter/classifier"
	"drawing-interpreter/internal/interpreter/correlate"
	"drawing-interpreter/internal/interpreter/history"
	"drawing-interpreter/internal/interpreter/levels"
	"drawing-interpreter/internal/interpreter/matcher"
	"drawing-interpreter/internal/interpreter/merge"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "drawing-interpreter/session"

// ErrCancelled wraps the context error of a cancelled run.
var ErrCancelled = errors.New("interpretation cancelled")

// Archive keeps full results of successful runs.
type Archive interface {
	Save(result *models.DrawingInterpretationResult) error
}

type Config struct {
	Tuning rules.Tuning
	// Registry defaults to rules.DefaultRegistry(Tuning).
	Registry              *rules.Registry
	Workers               int
	ProcessUnmappedLayers bool
}

type Deps struct {
	Store   history.Store
	Archive Archive
	Metrics *Metrics
	Logger  *zap.Logger
	Tracer  trace.Tracer
}

// RunOptions apply to a single Interpret call.
type RunOptions struct {
	Observer              Observer
	ProcessUnmappedLayers bool
}

type Orchestrator struct {
	cfg        Config
	registry   *rules.Registry
	classifier *classifier.Classifier
	levels     *levels.Extractor
	correlator *correlate.Correlator
	merger     *merge.Merger

	store   history.Store
	archive Archive
	metrics *Metrics
	log     *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	registry := cfg.Registry
	if registry == nil {
		var err error
		if registry, err = rules.DefaultRegistry(cfg.Tuning); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	store := deps.Store
	if store == nil {
		store = history.NewMemoryStore(0)
	}

	correlator, err := correlate.New(registry, cfg.Tuning, log.Named("correlate"))
	if err != nil {
		return nil, fmt.Errorf("correlator: %w", err)
	}
	merger, err := merge.New(registry, cfg.Tuning, log.Named("merge"))
	if err != nil {
		return nil, fmt.Errorf("merger: %w", err)
	}

	return &Orchestrator{
		cfg:        cfg,
		registry:   registry,
		classifier: classifier.New(cfg.Tuning, log.Named("classifier")),
		levels:     levels.NewExtractor(cfg.Tuning, log.Named("levels")),
		correlator: correlator,
		merger:     merger,
		store:      store,
		archive:    deps.Archive,
		metrics:    deps.Metrics,
		log:        log,
		tracer:     tracer,
		now:        time.Now,
	}, nil
}

// History returns the session store.
func (o *Orchestrator) History() history.Store {
	return o.store
}

// Interpret runs every phase over sheet. The result is never nil. The error
// is non-nil exactly when the result is unsuccessful; a cancelled run
// returns an error wrapping ErrCancelled and the context error.
func (o *Orchestrator) Interpret(ctx context.Context, sheet models.DrawingSheetInput, opts RunOptions) (*models.DrawingInterpretationResult, error) {
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver{}
	}

	rec := models.InterpretationSession{
		ID:        uuid.NewString(),
		SheetName: sheet.SheetName,
		StartedAt: o.now(),
	}
	log := o.log.With(zap.String("session_id", rec.ID), zap.String("sheet", sheet.SheetName))

	ctx, span := o.tracer.Start(ctx, "interpret")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", rec.ID),
		attribute.String("sheet", sheet.SheetName),
		attribute.Int("views", len(sheet.Views)),
	)

	result := &models.DrawingInterpretationResult{SessionID: rec.ID, SheetName: sheet.SheetName}
	err := o.run(ctx, sheet, opts, obs, result)

	rec.EndedAt = o.now()
	outcome := OutcomeSuccess
	if err != nil {
		cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		*result = failedResult(rec.ID, sheet.SheetName, err, cancelled)
		outcome = OutcomeFailure
		if cancelled {
			outcome = OutcomeCancelled
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		rec.Error = result.ErrorMessage
		span.RecordError(err)
		span.SetStatus(codes.Error, result.ErrorMessage)
	} else {
		rec.Success = true
		rec.ElementCount = result.ElementCount
	}

	// the record outlives a cancelled request
	if appendErr := o.store.Append(context.WithoutCancel(ctx), rec); appendErr != nil {
		log.Error("failed to record session", zap.Error(appendErr))
	}
	if err == nil && o.archive != nil {
		if archiveErr := o.archive.Save(result); archiveErr != nil {
			log.Error("failed to archive result", zap.Error(archiveErr))
		}
	}

	o.metrics.recordSession(outcome, rec.Duration())
	if err != nil {
		log.Warn("interpretation failed",
			zap.String("outcome", outcome),
			zap.Duration("duration", rec.Duration()),
			zap.Error(err))
		return result, err
	}

	o.metrics.recordResult(result)
	log.Info("interpretation complete",
		zap.Int("views", len(result.Views)),
		zap.Int("recognized", len(result.RecognizedElements)),
		zap.Int("correlations", len(result.ViewCorrelations)),
		zap.Int("elements", result.ElementCount),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", rec.Duration()))
	return result, nil
}

// run fills result phase by phase. Cancellation is checked before each
// phase and, during matching, before each unit.
func (o *Orchestrator) run(
	ctx context.Context,
	sheet models.DrawingSheetInput,
	opts RunOptions,
	obs Observer,
	result *models.DrawingInterpretationResult,
) (err error) {
	phase := "setup"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error during %s: %v", phase, r)
		}
	}()

	var (
		views        []models.ClassifiedView
		levelDefs    []models.LevelDefinition
		elements     []models.RecognizedElement
		correlations []models.ViewCorrelation
		merged       []models.MergedElement
	)

	phase = "classify"
	obs.Progress(ProgressClassify, "Classifying views")
	if err := o.step(ctx, phase, func(context.Context) error {
		views = o.classifier.ClassifyAll(sheet.Views)
		return nil
	}); err != nil {
		return err
	}

	phase = "levels"
	obs.Progress(ProgressLevels, "Extracting levels")
	if err := o.step(ctx, phase, func(context.Context) error {
		levelDefs = o.levels.Extract(views)
		return nil
	}); err != nil {
		return err
	}

	phase = "match"
	obs.Progress(ProgressMatch, "Recognizing elements")
	if err := o.step(ctx, phase, func(ctx context.Context) error {
		m := matcher.New(o.registry, o.cfg.Tuning, matcher.Options{
			ProcessUnmappedLayers: o.cfg.ProcessUnmappedLayers || opts.ProcessUnmappedLayers,
			Workers:               o.cfg.Workers,
			OnFailure: func(f matcher.Failure) {
				o.metrics.recordPatternFailure(f.ElementType)
			},
		}, o.log.Named("matcher"))

		perView, err := m.MatchViews(ctx, views)
		if err != nil {
			return err
		}
		for _, list := range perView {
			elements = append(elements, list...)
		}
		return nil
	}); err != nil {
		return err
	}
	for _, e := range elements {
		obs.ElementRecognized(e)
	}

	phase = "correlate"
	obs.Progress(ProgressCorrelate, "Correlating views")
	if err := o.step(ctx, phase, func(context.Context) error {
		correlations = o.correlator.Correlate(elements)
		return nil
	}); err != nil {
		return err
	}
	for _, c := range correlations {
		obs.CorrelationFound(c)
	}

	phase = "merge"
	obs.Progress(ProgressMerge, "Merging elements")
	if err := o.step(ctx, phase, func(context.Context) error {
		merged = o.merger.Merge(elements, correlations, levelDefs)
		return nil
	}); err != nil {
		return err
	}

	phase = "validate"
	obs.Progress(ProgressValidate, "Validating results")
	warnings := Validate(elements, correlations, merged, o.cfg.Tuning.UncorrelatedWarningRatio)

	summaries := make([]models.ViewSummary, 0, len(views))
	for _, v := range views {
		summaries = append(summaries, v.Summary())
	}

	result.Success = true
	result.Views = summaries
	result.RecognizedElements = nonNil(elements)
	result.ViewCorrelations = nonNil(correlations)
	result.LevelDefinitions = nonNil(levelDefs)
	result.MergedElements = nonNil(merged)
	result.ElementCount = len(merged)
	result.Warnings = nonNil(warnings)

	obs.Progress(ProgressDone, "Complete")
	return nil
}

// step runs fn in its own span after checking for cancellation.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := o.tracer.Start(ctx, "interpret."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// failedResult drops everything computed before the failure.
func failedResult(sessionID, sheet string, err error, cancelled bool) models.DrawingInterpretationResult {
	msg := err.Error()
	if cancelled {
		msg = ErrCancelled.Error()
	}
	return models.DrawingInterpretationResult{
		SessionID:          sessionID,
		SheetName:          sheet,
		Success:            false,
		Cancelled:          cancelled,
		ErrorMessage:       msg,
		RecognizedElements: []models.RecognizedElement{},
		ViewCorrelations:   []models.ViewCorrelation{},
		LevelDefinitions:   []models.LevelDefinition{},
		MergedElements:     []models.MergedElement{},
		Warnings:           []string{},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
