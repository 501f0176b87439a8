package memory

import "errors"

// Sentinel errors for the engine's error taxonomy.
var (
	// ErrStorageUnavailable indicates a store read or write failed.
	// During context assembly reads it is swallowed and the affected
	// section degrades to empty; during explicit writes it propagates.
	ErrStorageUnavailable = errors.New("memory: storage unavailable")

	// ErrGenerationUnavailable indicates the external text-generation
	// collaborator failed or timed out. Always resolved internally via
	// the deterministic fallback summary.
	ErrGenerationUnavailable = errors.New("memory: generation unavailable")

	// ErrInvalidSummary indicates generated text failed the validation
	// gate. Resolved internally via the deterministic fallback.
	ErrInvalidSummary = errors.New("memory: invalid summary")

	// ErrSummaryConflict indicates a summary covering the same window
	// already exists. A concurrent trigger won the race; the existing
	// summary should be used.
	ErrSummaryConflict = errors.New("memory: summary range conflict")

	// ErrTurnNotFound indicates the requested turn does not exist.
	ErrTurnNotFound = errors.New("memory: turn not found")

	// ErrPinNotFound indicates the requested pin does not exist.
	ErrPinNotFound = errors.New("memory: pin not found")
)
