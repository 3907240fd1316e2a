package receipt

import (
	"context"
	"errors"
	"sync"

	"spendly/internal/log"
)

// ErrUnauthorized marks extraction failures caused by a missing or rejected
// access credential.
var ErrUnauthorized = errors.New("extraction credential rejected")

// CredentialStatus tracks what is known about a user's extraction credential.
type CredentialStatus int

const (
	// CredentialUnknown means no selection has been attempted.
	CredentialUnknown CredentialStatus = iota
	// CredentialAssumed means a selection was triggered and is assumed to
	// have worked. It has not been verified by a successful call.
	CredentialAssumed
	// CredentialInvalid means the backend rejected the credential.
	CredentialInvalid
)

func (s CredentialStatus) String() string {
	switch s {
	case CredentialAssumed:
		return "assumed"
	case CredentialInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Selector starts the external credential-selection step for a user.
type Selector interface {
	Select(ctx context.Context, userID string) error
}

// Credentials holds the per-user credential status. Ensure never waits for
// the selection to be confirmed.
type Credentials struct {
	mu       sync.Mutex
	status   map[string]CredentialStatus
	selector Selector
	logger   *log.Logger
}

func NewCredentials(selector Selector, logger *log.Logger) *Credentials {
	return &Credentials{
		status:   make(map[string]CredentialStatus),
		selector: selector,
		logger:   logger.WithComponent(log.ComponentReceipt),
	}
}

func (c *Credentials) Status(userID string) CredentialStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[userID]
}

// Ensure triggers selection unless the credential is already assumed, then
// marks it assumed regardless of the selection outcome. A bad credential
// surfaces later as ErrUnauthorized from the extraction call.
func (c *Credentials) Ensure(ctx context.Context, userID string) {
	c.mu.Lock()
	st := c.status[userID]
	if st == CredentialAssumed {
		c.mu.Unlock()
		return
	}
	c.status[userID] = CredentialAssumed
	c.mu.Unlock()

	if c.selector == nil {
		return
	}
	if err := c.selector.Select(ctx, userID); err != nil {
		c.logger.WarnContext(ctx, "Credential selection reported an error, proceeding optimistically",
			log.FieldUserID, userID,
			log.FieldError, err,
			"previous_status", st.String())
	}
}

// Invalidate records that the backend rejected the user's credential.
func (c *Credentials) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[userID] = CredentialInvalid
}

// Confirm records an explicit credential choice by the user.
func (c *Credentials) Confirm(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[userID] = CredentialAssumed
}

// Forget drops all state for a user, e.g. on sign-out.
func (c *Credentials) Forget(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.status, userID)
}
