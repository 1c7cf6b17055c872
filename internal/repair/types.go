// Package repair searches padding transformations that turn a damaged dump
// into a catalogued one and applies the verified ones to disk.
package repair

import (
	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/hasher"
)

// MethodKind is the byte level operation of a repair.
type MethodKind int

const (
	MethodAppendPadding MethodKind = iota + 1
	MethodPrependPadding
)

func (k MethodKind) String() string {
	switch k {
	case MethodAppendPadding:
		return "append"
	case MethodPrependPadding:
		return "prepend"
	default:
		return "unknown"
	}
}

// Method describes how many fill bytes are added and where.
type Method struct {
	Kind       MethodKind
	FillByte   byte
	BytesAdded uint64
}

// Action is one verified repair waiting to be executed.
type Action struct {
	FilePath string
	GameName string
	Method   Method
	Padding  hasher.PaddingSpec
	// HeaderSize leading bytes stay in front of any prepended fill.
	HeaderSize uint64
}

// FileError ties a failure to the file it happened on.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Plan is the result of one planning run.
type Plan struct {
	AlreadyCorrect []string
	Repairable     []Action
	NoMatch        []string
	Errors         []FileError
}

// Summary aggregates an execution run.
type Summary struct {
	Repaired int
	Failed   int
	BackedUp int
	Errors   []FileError
}

// ProgressKind names a planning checkpoint.
type ProgressKind int

const (
	ProgressScanning ProgressKind = iota + 1
	ProgressCheckingFile
	ProgressTryingStrategy
	ProgressDone
)

// Progress is delivered in-line from PlanRepairs. Current is 1-based for
// file checkpoints.
type Progress struct {
	Kind     ProgressKind
	Path     string
	Current  int
	Total    int
	Strategy string
}

// ProgressFunc receives planning checkpoints on the caller's goroutine.
type ProgressFunc func(Progress)

// Options tunes PlanRepairs.
type Options struct {
	Analyze analyzer.Options
	// Recursive descends into sub directories of the folder.
	Recursive bool
}
