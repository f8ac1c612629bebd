package riot

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the three possible results of a gateway call.
type Kind int

// Outcome kinds.
const (
	KindOK Kind = iota
	KindNotFound
	KindFailed
)

// Failure classifies a failed call.
type Failure int

// Failure kinds.
const (
	FailureNone Failure = iota
	FailureRateLimited
	FailureOther
)

// ErrNotOK is returned when decoding an outcome that carries no payload.
var ErrNotOK = errors.New("riot: outcome has no payload")

// Outcome is the result of one API call: a payload, an absence, or a typed failure.
type Outcome struct {
	Kind    Kind
	Payload []byte
	Failure Failure
	Status  int
	Err     error
}

// Ok wraps a successful payload.
func Ok(payload []byte) Outcome {
	return Outcome{Kind: KindOK, Payload: payload, Status: 200}
}

// NotFound reports an absent resource.
func NotFound() Outcome {
	return Outcome{Kind: KindNotFound, Status: 404}
}

// Failed reports a failed call.
func Failed(failure Failure, status int, err error) Outcome {
	return Outcome{Kind: KindFailed, Failure: failure, Status: status, Err: err}
}

// OK reports whether the outcome carries a payload.
func (o Outcome) OK() bool { return o.Kind == KindOK }

// RateLimited reports whether the call was throttled.
func (o Outcome) RateLimited() bool {
	return o.Kind == KindFailed && o.Failure == FailureRateLimited
}

// Decode unmarshals the payload into v. A decode failure is reported as a failed outcome.
func (o Outcome) Decode(v any) Outcome {
	if o.Kind != KindOK {
		return o
	}
	if err := json.Unmarshal(o.Payload, v); err != nil {
		return Failed(FailureOther, o.Status, fmt.Errorf("decode payload: %w", err))
	}
	return o
}

// AsError describes a non-OK outcome; it returns nil for OK outcomes.
func (o Outcome) AsError() error {
	switch o.Kind {
	case KindOK:
		return nil
	case KindNotFound:
		return ErrNotOK
	case KindFailed:
		if o.Err != nil {
			return o.Err
		}
		return fmt.Errorf("riot: request failed with status %d", o.Status)
	}
	return ErrNotOK
}

// Label returns a short metrics label for the outcome.
func (o Outcome) Label() string {
	switch o.Kind {
	case KindOK:
		return "ok"
	case KindNotFound:
		return "not_found"
	case KindFailed:
		if o.Failure == FailureRateLimited {
			return "rate_limited"
		}
		return "error"
	}
	return "unknown"
}
