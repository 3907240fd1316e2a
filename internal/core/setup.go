package core

import (
	"errors"
	"regexp"
	"strings"
)

// ErrSetupRequired marks failures that need an operator to provision
// something (an index, an API enablement) before they can succeed.
var ErrSetupRequired = errors.New("setup required")

var consoleLinkRe = regexp.MustCompile(`https://console\.(?:firebase|cloud|developers)\.google\.com[^\s"'<>)]*`)

// SetupError carries the remediation link extracted from a collaborator error.
type SetupError struct {
	URL string
	Err error
}

func (e *SetupError) Error() string {
	return "setup required: " + e.URL
}

func (e *SetupError) Unwrap() []error {
	return []error{ErrSetupRequired, e.Err}
}

// DetectSetupRequired looks for a console remediation link in err and its
// chain. It returns the link and true when one is found.
func DetectSetupRequired(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var se *SetupError
	if errors.As(err, &se) {
		return se.URL, true
	}
	link := consoleLinkRe.FindString(err.Error())
	if link == "" {
		return "", false
	}
	return strings.TrimRight(link, ".,;:"), true
}

// AsSetupError wraps err in a *SetupError when it carries a console link and
// returns it unchanged otherwise.
func AsSetupError(err error) error {
	url, ok := DetectSetupRequired(err)
	if !ok {
		return err
	}
	var se *SetupError
	if errors.As(err, &se) {
		return err
	}
	return &SetupError{URL: url, Err: err}
}
