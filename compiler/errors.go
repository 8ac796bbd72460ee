package compiler

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a compile diagnostic.
type ErrorKind uint8

const (
	ErrMalformedInput    ErrorKind = iota // syntax or type error in the expression
	ErrMissingInfo                        // debug info lacks what is needed
	ErrResolutionFailure                  // a name did not resolve
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMissingInfo:
		return "missing info"
	case ErrResolutionFailure:
		return "resolution failure"
	}
	return "malformed input"
}

// Severity distinguishes fatal diagnostics from warnings.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Error is one diagnostic, positioned at a byte offset of the expression.
type Error struct {
	Kind     ErrorKind
	Severity Severity
	Offset   int
	Message  string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d: %s: %s", e.Offset, e.Severity, e.Message)
}

// Errors is the ordered diagnostic list of one compilation.
type Errors []Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any diagnostic has error severity.
func (es Errors) HasErrors() bool {
	for _, e := range es {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err returns es as an error if it holds any error-severity entry.
func (es Errors) Err() error {
	if es.HasErrors() {
		return es
	}
	return nil
}

func (es *Errors) add(kind ErrorKind, sev Severity, offset int, format string, args ...interface{}) {
	*es = append(*es, Error{Kind: kind, Severity: sev, Offset: offset, Message: fmt.Sprintf(format, args...)})
}

func (es *Errors) errorf(kind ErrorKind, offset int, format string, args ...interface{}) {
	es.add(kind, SeverityError, offset, format, args...)
}

func (es *Errors) warnf(offset int, format string, args ...interface{}) {
	es.add(ErrMalformedInput, SeverityWarning, offset, format, args...)
}
