// Package result holds probe outcomes and the tables they are collected into.
package result

import (
	"net/http"
	"strconv"
)

// FailureMarker is how a failed probe is rendered in reports and JSON keys.
const FailureMarker = "Error"

// Result is the outcome of probing one target: an HTTP status code or a failure.
// The zero value is Failure.
type Result struct {
	code int
}

// Failure marks a target for which every attempt failed at the network level.
var Failure = Result{}

// Code returns the Result for an observed HTTP status code.
func Code(status int) Result {
	return Result{code: status}
}

// IsFailure reports whether no HTTP response was obtained.
func (r Result) IsFailure() bool {
	return r.code == 0
}

// StatusCode returns the HTTP status code, or 0 for Failure.
func (r Result) StatusCode() int {
	return r.code
}

func (r Result) String() string {
	if r.IsFailure() {
		return FailureMarker
	}
	return strconv.Itoa(r.code)
}

// Class returns the status class ("2xx", "4xx", ...) or the failure marker.
func (r Result) Class() string {
	if r.IsFailure() {
		return FailureMarker
	}
	return strconv.Itoa(r.code/100) + "xx"
}

// Parse converts a rendered key ("200", "Error") back into a Result.
func Parse(s string) (Result, bool) {
	if s == FailureMarker {
		return Failure, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 100 || n > 999 {
		return Failure, false
	}
	return Code(n), true
}

// Text returns the standard reason phrase for the code, if any.
func (r Result) Text() string {
	if r.IsFailure() {
		return ""
	}
	return http.StatusText(r.code)
}
