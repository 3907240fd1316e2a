package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendly/internal/log"
)

// Request is one structured-extraction call.
type Request struct {
	UserID      string
	Image       Image
	Instruction string
	Schema      *Schema
}

// Extractor calls the structured-extraction backend and returns the raw
// reply text. Authorization failures must wrap ErrUnauthorized.
type Extractor interface {
	Extract(ctx context.Context, req Request) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, req Request) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Outcome labels a finished recognition for metrics and logs.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeEmpty        Outcome = "empty"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeFailed       Outcome = "failed"
	OutcomeDropped      Outcome = "dropped"
)

// Observer is notified of every finished recognition.
type Observer func(outcome Outcome, elapsed time.Duration)

// Result describes a successful recognition.
type Result struct {
	Applied  Applied
	Snapshot Snapshot
}

// Recognizer runs the recognize operation against Forms.
type Recognizer struct {
	extractor      Extractor
	credentials    *Credentials
	clearOnSuccess bool
	timeout        time.Duration
	observe        Observer
	logger         *log.Logger
}

type RecognizerOption func(*Recognizer)

// KeepImageOnSuccess leaves the image in place after a successful merge so
// the user can retry.
func KeepImageOnSuccess() RecognizerOption {
	return func(r *Recognizer) { r.clearOnSuccess = false }
}

// WithTimeout bounds each extraction call.
func WithTimeout(d time.Duration) RecognizerOption {
	return func(r *Recognizer) { r.timeout = d }
}

func WithObserver(o Observer) RecognizerOption {
	return func(r *Recognizer) { r.observe = o }
}

func NewRecognizer(extractor Extractor, credentials *Credentials, logger *log.Logger, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		extractor:      extractor,
		credentials:    credentials,
		clearOnSuccess: true,
		logger:         logger.WithComponent(log.ComponentReceipt),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize sends the form's image for extraction and merges the reply.
//
// It returns ErrNoImage without side effects when nothing is captured and
// ErrBusy when a recognition is already running for form. On any failure the
// fields are left unchanged, the image is kept and the form returns to
// PhaseImageCaptured with a user-facing message. ErrUnauthorized failures
// also mark the user's credential invalid. There are no retries.
func (r *Recognizer) Recognize(ctx context.Context, userID string, form *Form) (Result, error) {
	img, gen, err := form.begin()
	if err != nil {
		return Result{}, err
	}
	start := time.Now()

	if r.credentials != nil {
		r.credentials.Ensure(ctx, userID)
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	raw, err := r.call(callCtx, Request{
		UserID:      userID,
		Image:       img,
		Instruction: Instruction,
		Schema:      OutputSchema,
	})
	if err == nil {
		var ext Extraction
		ext, err = ParseExtraction(raw)
		if err == nil {
			applied, live := form.complete(gen, ext, r.clearOnSuccess)
			if !live {
				r.finish(ctx, userID, OutcomeDropped, start, nil)
				return Result{}, ErrDiscarded
			}
			outcome := OutcomeApplied
			if !applied.Any() {
				outcome = OutcomeEmpty
			}
			r.finish(ctx, userID, outcome, start, nil)
			return Result{Applied: applied, Snapshot: form.Snapshot()}, nil
		}
	}

	outcome := OutcomeFailed
	switch {
	case errors.Is(err, ErrUnauthorized):
		outcome = OutcomeUnauthorized
		if r.credentials != nil {
			r.credentials.Invalidate(userID)
		}
	case errors.Is(err, ErrMalformedResponse):
		outcome = OutcomeMalformed
	}
	if !form.fail(gen, UserMessage(err)) {
		outcome = OutcomeDropped
	}
	r.finish(ctx, userID, outcome, start, err)
	return Result{}, err
}

// call shields the caller from panics inside an Extractor.
func (r *Recognizer) call(ctx context.Context, req Request) (raw string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extractor panic: %v", p)
		}
	}()
	return r.extractor.Extract(ctx, req)
}

func (r *Recognizer) finish(ctx context.Context, userID string, outcome Outcome, start time.Time, err error) {
	elapsed := time.Since(start)
	if r.observe != nil {
		r.observe(outcome, elapsed)
	}
	args := []any{
		log.FieldUserID, userID,
		log.FieldOperation, log.OpRecognize,
		"outcome", string(outcome),
		log.FieldDuration, elapsed.Milliseconds(),
	}
	if err != nil {
		r.logger.WarnContext(ctx, "Receipt recognition failed", append(args, log.FieldError, err)...)
		return
	}
	r.logger.InfoContext(ctx, "Receipt recognition finished", args...)
}
