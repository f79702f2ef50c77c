// Package engine orchestrates the full question-to-rows pipeline: schema
// snapshot, cache lookup, prompt construction, inference, extraction,
// validation, execution, and the auto-fix loop that feeds failures back
// into the next prompt.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aisavvy/aisavvy/internal/cache"
	enginerr "github.com/aisavvy/aisavvy/internal/errors"
	"github.com/aisavvy/aisavvy/internal/executor"
	"github.com/aisavvy/aisavvy/internal/llm"
	"github.com/aisavvy/aisavvy/internal/metrics"
	"github.com/aisavvy/aisavvy/internal/prompt"
	"github.com/aisavvy/aisavvy/internal/schema"
	"github.com/aisavvy/aisavvy/internal/sqlcheck"
)

// Request is one natural-language question plus optional prior turns from
// the same session.
type Request struct {
	Question string        `json:"question"`
	History  []prompt.Turn `json:"history,omitempty"`
}

// Response is a successful answer.
type Response struct {
	RequestID string         `json:"request_id"`
	Question  string         `json:"question"`
	SQL       string         `json:"sql"`
	Columns   []string       `json:"columns"`
	Rows      []executor.Row `json:"rows"`
	Cached    bool           `json:"cached"`
	Attempts  int            `json:"attempts"`
}

// Failure is a terminal pipeline failure. It carries the last SQL that was
// attempted (empty when generation never produced any) so callers can show
// what the engine tried.
type Failure struct {
	RequestID string
	SQL       string
	Attempts  int
	Err       error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Options wires the engine's collaborators.
type Options struct {
	Source      schema.Source
	Inference   llm.Service
	Builder     *prompt.Builder
	Runner      executor.Runner
	Cache       *cache.ResponseCache // nil disables caching
	MaxAttempts int
	Logger      *slog.Logger
}

// Engine answers questions by translating them to SQL and executing the
// result. An Engine is safe for concurrent use.
type Engine struct {
	source      schema.Source
	inference   llm.Service
	builder     *prompt.Builder
	runner      executor.Runner
	cache       *cache.ResponseCache
	maxAttempts int
	logger      *slog.Logger
}

const defaultMaxAttempts = 3

// New creates an engine.
func New(opts Options) *Engine {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		source:      opts.Source,
		inference:   opts.Inference,
		builder:     opts.Builder,
		runner:      opts.Runner,
		cache:       opts.Cache,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Answer runs the pipeline for one question. On failure it returns a
// *Failure describing the terminal error and the last SQL attempted.
func (e *Engine) Answer(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	logger := e.logger.With(slog.String("request_id", requestID))

	if req.Question == "" {
		return nil, &Failure{
			RequestID: requestID,
			Err:       enginerr.New(enginerr.KindInternal, "question must not be empty"),
		}
	}

	snapStart := time.Now()

	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		logger.Error("schema snapshot failed", slog.Any("error", err))
		metrics.QuestionsTotal.WithLabelValues("failed").Inc()

		return nil, &Failure{RequestID: requestID, Err: err}
	}

	metrics.StageDuration.WithLabelValues("catalog").Observe(time.Since(snapStart).Seconds())

	if e.cache != nil {
		if entry, ok := e.cache.Lookup(req.Question, snap.Version); ok {
			logger.Info("cache hit", slog.String("schema_version", snap.Version))
			metrics.CacheEvents.WithLabelValues("hit").Inc()
			metrics.QuestionsTotal.WithLabelValues("cached").Inc()

			return &Response{
				RequestID: requestID,
				Question:  req.Question,
				SQL:       entry.SQL,
				Columns:   entry.Result.Columns,
				Rows:      entry.Result.Rows,
				Cached:    true,
			}, nil
		}

		metrics.CacheEvents.WithLabelValues("miss").Inc()
	}

	response, failure := e.attemptLoop(ctx, requestID, logger, req, snap)
	if failure != nil {
		metrics.QuestionsTotal.WithLabelValues(outcomeLabel(failure.Err)).Inc()
		return nil, failure
	}

	metrics.QuestionsTotal.WithLabelValues("succeeded").Inc()
	metrics.AttemptsPerQuestion.Observe(float64(response.Attempts))

	if e.cache != nil {
		e.cache.Store(req.Question, snap.Version, response.SQL, &executor.Result{
			Columns: response.Columns,
			Rows:    response.Rows,
		})
	}

	return response, nil
}

// attemptLoop drives the bounded generate-validate-execute cycle. Each
// iteration costs one inference call; a correctable failure feeds its SQL
// and error text into the next prompt, anything else ends the loop.
func (e *Engine) attemptLoop(
	ctx context.Context,
	requestID string,
	logger *slog.Logger,
	req Request,
	snap *schema.Snapshot,
) (*Response, *Failure) {
	var (
		repair  *prompt.Repair
		lastSQL string
		lastErr error
	)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Failure{
				RequestID: requestID,
				SQL:       lastSQL,
				Attempts:  attempt - 1,
				Err: enginerr.Wrap(err, enginerr.KindInternal,
					"request cancelled before attempt completed"),
			}
		}

		logger.Info("generating SQL",
			slog.Int("attempt", attempt),
			slog.Bool("repair", repair != nil),
			slog.String("schema_version", snap.Version))

		stmt, result, err := e.runAttempt(ctx, req, snap, repair)
		if err == nil {
			logger.Info("question answered",
				slog.Int("attempt", attempt),
				slog.Int("rows", len(result.Rows)))

			return &Response{
				RequestID: requestID,
				Question:  req.Question,
				SQL:       stmt.SQL,
				Columns:   result.Columns,
				Rows:      result.Rows,
				Attempts:  attempt,
			}, nil
		}

		lastErr = err
		if stmt.SQL != "" {
			lastSQL = stmt.SQL
		}

		kind := enginerr.KindOf(err)
		metrics.AttemptFailures.WithLabelValues(string(kind)).Inc()
		logger.Warn("attempt failed",
			slog.Int("attempt", attempt),
			slog.String("kind", string(kind)),
			slog.String("error", enginerr.Summary(err)))

		if !enginerr.Correctable(err) {
			return nil, &Failure{
				RequestID: requestID,
				SQL:       lastSQL,
				Attempts:  attempt,
				Err:       err,
			}
		}

		repair = &prompt.Repair{SQL: stmt.SQL, ErrorText: enginerr.Summary(err)}
	}

	return nil, &Failure{
		RequestID: requestID,
		SQL:       lastSQL,
		Attempts:  e.maxAttempts,
		Err: enginerr.Wrapf(lastErr, enginerr.KindOf(lastErr),
			"no working SQL after %d attempts: %s", e.maxAttempts, enginerr.Summary(lastErr)),
	}
}

// runAttempt performs one generate-extract-validate-execute pass. The
// returned statement reflects how far the attempt got: zero-valued when
// generation or extraction failed, populated otherwise.
func (e *Engine) runAttempt(
	ctx context.Context,
	req Request,
	snap *schema.Snapshot,
	repair *prompt.Repair,
) (sqlcheck.Statement, *executor.Result, error) {
	promptText := e.builder.Build(req.Question, snap, req.History, repair)

	inferStart := time.Now()

	raw, err := e.inference.Generate(ctx, promptText)

	metrics.StageDuration.WithLabelValues("inference").Observe(time.Since(inferStart).Seconds())

	if err != nil {
		return sqlcheck.Statement{}, nil, err
	}

	stmt, err := sqlcheck.Extract(raw)
	if err != nil {
		return sqlcheck.Statement{}, nil, err
	}

	if err := sqlcheck.Validate(stmt, snap); err != nil {
		return stmt, nil, err
	}

	execStart := time.Now()

	result, err := e.runner.Execute(ctx, stmt)

	metrics.StageDuration.WithLabelValues("execute").Observe(time.Since(execStart).Seconds())

	if err != nil {
		return stmt, nil, err
	}

	return stmt, result, nil
}

func outcomeLabel(err error) string {
	if enginerr.Correctable(err) {
		return "exhausted"
	}

	return "failed"
}
