package extract

import (
	"errors"

	"github.com/mvp-joe/splitter/internal/storage"
)

var (
	// ErrPersist means a target module could not be saved. The pass must stop
	// before anything is pruned from the origin.
	ErrPersist = storage.ErrPersist

	// ErrStaleCandidate means a candidate no longer resolves in the module it
	// was computed from.
	ErrStaleCandidate = errors.New("candidate no longer resolves")

	// ErrSelfTarget means the target path is the origin itself.
	ErrSelfTarget = errors.New("target is the origin module")
)
