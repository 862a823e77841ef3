package pipeline

import (
	"errors"

	"github.com/mvp-joe/splitter/internal/extract"
)

// State is a step of a run. Runs move through the states in declaration
// order and never go back.
type State string

const (
	StateIdle               State = "Idle"
	StateTopLevelExtraction State = "TopLevelExtraction"
	StateNestedExtraction   State = "NestedExtraction"
	StateTypeReconciliation State = "TypeReconciliation"
	StateExternalFormatting State = "ExternalFormatting"
	StateDone               State = "Done"
)

var (
	// ErrPersist aborts a run; nothing is pruned after it.
	ErrPersist = extract.ErrPersist

	// ErrOriginMissing means the origin module does not exist.
	ErrOriginMissing = errors.New("origin module not found")

	// ErrSyntax means the origin does not parse cleanly, so extraction is skipped.
	ErrSyntax = errors.New("origin has syntax errors")

	// ErrCompositeNotFound means the selector matched no function-like declaration.
	ErrCompositeNotFound = errors.New("composite not found")

	// ErrAmbiguousComposite means the selector matched more than one declaration.
	ErrAmbiguousComposite = errors.New("composite is ambiguous")

	// ErrNotBlockBody means the composite has an expression body with no room
	// for nested declarations.
	ErrNotBlockBody = errors.New("composite has no block body")

	// ErrImportCycle means the modules of a run import each other.
	ErrImportCycle = errors.New("import cycle")
)
