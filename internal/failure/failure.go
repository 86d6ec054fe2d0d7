package failure

import (
	"errors"
	"fmt"
)

// Kind separates failures worth retrying from ones that must be reported
// to the user as-is.
type Kind int

const (
	KindTransient Kind = iota + 1
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Error tags an underlying error with its Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

func Terminal(op string, err error) error {
	return &Error{Kind: KindTerminal, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost tagged error in err's chain.
// Untagged errors are treated as transient.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

func IsTerminal(err error) bool {
	return err != nil && KindOf(err) == KindTerminal
}

// FromStatus classifies an HTTP status code returned by a collaborator.
func FromStatus(op string, status int, err error) error {
	if status == 429 || status >= 500 {
		return Transient(op, err)
	}
	return Terminal(op, err)
}
