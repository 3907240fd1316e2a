package receipt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spendly/internal/core"
	"spendly/internal/log"
)

type countingSelector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSelector) Select(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *countingSelector) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func reply(body string, err error) Extractor {
	return ExtractorFunc(func(context.Context, Request) (string, error) { return body, err })
}

func capturedForm(t *testing.T) *Form {
	t.Helper()
	f := NewForm(0)
	if err := f.SetFields(Fields{Amount: "5", Category: core.CategoryHealth, Description: "before"}); err != nil {
		t.Fatal(err)
	}
	if err := f.CaptureImage(jpeg()); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestRecognizeAppliesAndClearsImage(t *testing.T) {
	var seen Request
	ex := ExtractorFunc(func(_ context.Context, req Request) (string, error) {
		seen = req
		return `{"amount":250,"description":"Coffee","category":"food"}`, nil
	})
	var outcomes []Outcome
	r := NewRecognizer(ex, NewCredentials(nil, log.Discard()), log.Discard(),
		WithObserver(func(o Outcome, _ time.Duration) { outcomes = append(outcomes, o) }))
	f := capturedForm(t)

	res, err := r.Recognize(context.Background(), "u1", f)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	s := res.Snapshot
	if s.Fields.Amount != "250" || s.Fields.Description != "Coffee" || s.Fields.Category != core.CategoryFood {
		t.Fatalf("unexpected fields %+v", s.Fields)
	}
	if s.Phase != PhaseIdle || s.HasImage {
		t.Fatalf("image must be cleared on success, got %+v", s)
	}
	if seen.UserID != "u1" || seen.Instruction != Instruction || seen.Schema != OutputSchema || seen.Image.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected request %+v", seen)
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeApplied {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestRecognizeKeepImageOption(t *testing.T) {
	r := NewRecognizer(reply(`{"amount":3,"description":"Tea","category":"bogus"}`, nil), nil, log.Discard(), KeepImageOnSuccess())
	f := capturedForm(t)

	res, err := r.Recognize(context.Background(), "u1", f)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.Snapshot.Phase != PhaseImageCaptured || !res.Snapshot.HasImage {
		t.Fatalf("image must be kept, got %+v", res.Snapshot)
	}
	if res.Snapshot.Fields.Category != core.CategoryHealth || res.Applied.Category {
		t.Fatalf("unknown category must not apply")
	}
}

func TestRecognizeMalformedLeavesFields(t *testing.T) {
	r := NewRecognizer(reply("sorry, I cannot read this", nil), nil, log.Discard())
	f := capturedForm(t)

	_, err := r.Recognize(context.Background(), "u1", f)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	s := f.Snapshot()
	if s.Fields != (Fields{Amount: "5", Category: core.CategoryHealth, Description: "before"}) {
		t.Fatalf("fields changed: %+v", s.Fields)
	}
	if s.Phase != PhaseImageCaptured || !s.HasImage || s.Message == "" {
		t.Fatalf("expected retained image and message, got %+v", s)
	}
}

func TestRecognizeCallFailure(t *testing.T) {
	r := NewRecognizer(reply("", errors.New("network down")), nil, log.Discard())
	f := capturedForm(t)

	if _, err := r.Recognize(context.Background(), "u1", f); err == nil {
		t.Fatalf("expected error")
	}
	if s := f.Snapshot(); s.Phase != PhaseImageCaptured || s.Fields.Description != "before" {
		t.Fatalf("unexpected %+v", s)
	}
}

func TestRecognizeExtractorPanic(t *testing.T) {
	ex := ExtractorFunc(func(context.Context, Request) (string, error) { panic("boom") })
	r := NewRecognizer(ex, nil, log.Discard())
	f := capturedForm(t)

	if _, err := r.Recognize(context.Background(), "u1", f); err == nil {
		t.Fatalf("expected error from panicking extractor")
	}
	if f.Snapshot().Phase != PhaseImageCaptured {
		t.Fatalf("form must return to image captured")
	}
}

func TestRecognizeNoImage(t *testing.T) {
	called := false
	ex := ExtractorFunc(func(context.Context, Request) (string, error) { called = true; return "{}", nil })
	r := NewRecognizer(ex, nil, log.Discard())

	if _, err := r.Recognize(context.Background(), "u1", NewForm(0)); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if called {
		t.Fatalf("extractor must not be called without an image")
	}
}

func TestRecognizeRejectsReentry(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ex := ExtractorFunc(func(context.Context, Request) (string, error) {
		close(started)
		<-release
		return `{"amount":1}`, nil
	})
	r := NewRecognizer(ex, nil, log.Discard())
	f := capturedForm(t)

	done := make(chan error, 1)
	go func() {
		_, err := r.Recognize(context.Background(), "u1", f)
		done <- err
	}()
	<-started

	if f.Snapshot().Phase != PhaseRecognizing {
		t.Fatalf("expected recognizing phase")
	}
	if _, err := r.Recognize(context.Background(), "u1", f); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call: %v", err)
	}
}

func TestRecognizeDropsResultForDiscardedForm(t *testing.T) {
	f := capturedForm(t)
	ex := ExtractorFunc(func(context.Context, Request) (string, error) {
		f.Discard()
		return `{"amount":99,"description":"late"}`, nil
	})
	r := NewRecognizer(ex, nil, log.Discard())

	if _, err := r.Recognize(context.Background(), "u1", f); !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected ErrDiscarded, got %v", err)
	}
	if f.Snapshot().Fields.Amount == "99" {
		t.Fatalf("late result applied to discarded form")
	}
}

func TestCredentialHandshake(t *testing.T) {
	sel := &countingSelector{}
	creds := NewCredentials(sel, log.Discard())
	authFail := true
	ex := ExtractorFunc(func(context.Context, Request) (string, error) {
		if authFail {
			return "", ErrUnauthorized
		}
		return `{"amount":1}`, nil
	})
	r := NewRecognizer(ex, creds, log.Discard())

	if creds.Status("u1") != CredentialUnknown {
		t.Fatalf("expected unknown status")
	}

	f := capturedForm(t)
	_, err := r.Recognize(context.Background(), "u1", f)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if sel.Calls() != 1 {
		t.Fatalf("expected one selection, got %d", sel.Calls())
	}
	if creds.Status("u1") != CredentialInvalid {
		t.Fatalf("expected invalid status, got %s", creds.Status("u1"))
	}
	if f.Snapshot().Message != UserMessage(ErrUnauthorized) {
		t.Fatalf("expected credential message, got %q", f.Snapshot().Message)
	}

	authFail = false
	if _, err := r.Recognize(context.Background(), "u1", f); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if sel.Calls() != 2 || creds.Status("u1") != CredentialAssumed {
		t.Fatalf("expected reselection and assumed status, calls=%d status=%s", sel.Calls(), creds.Status("u1"))
	}

	_ = f.CaptureImage(jpeg())
	if _, err := r.Recognize(context.Background(), "u1", f); err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if sel.Calls() != 2 {
		t.Fatalf("assumed credential must not trigger selection again")
	}
}

func TestCredentialsEnsureIgnoresSelectorError(t *testing.T) {
	sel := &countingSelector{err: errors.New("dialog closed")}
	creds := NewCredentials(sel, log.Discard())

	creds.Ensure(context.Background(), "u1")
	if creds.Status("u1") != CredentialAssumed {
		t.Fatalf("selection must be assumed to succeed")
	}
	creds.Forget("u1")
	if creds.Status("u1") != CredentialUnknown {
		t.Fatalf("forget must reset status")
	}
	creds.Invalidate("u1")
	creds.Confirm("u1")
	if creds.Status("u1") != CredentialAssumed {
		t.Fatalf("confirm must set assumed")
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Fatalf("nil error must have no message")
	}
	seen := map[string]bool{}
	for _, err := range []error{ErrNoImage, ErrBusy, ErrUnauthorized, ErrMalformedResponse, errors.New("x")} {
		m := UserMessage(err)
		if m == "" || seen[m] {
			t.Fatalf("expected distinct message for %v", err)
		}
		seen[m] = true
	}
}
