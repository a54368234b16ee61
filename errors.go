package annoydb

import (
	"errors"

	"github.com/xDarkicex/annoydb/internal/builder"
	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Sentinel errors every Index operation can return, wrapped with
// fmt.Errorf("...: %w", ...) context at the call site rather than carried
// in a bespoke error type — the same plain convention as
// xDarkicex-libravdb's database.go and errors.go sentinel vars, without
// that package's circuit-breaker/recovery-orchestrator machinery: a
// single-writer, caller-driven-retry index has no runtime process to
// hand a failed operation off to, so there is nothing for that machinery
// to supervise. See DESIGN.md.
var (
	// ErrDimensionMismatch is returned when a vector's length does not
	// match the index's configured dimensionality.
	ErrDimensionMismatch = errors.New("annoydb: vector dimension mismatch")

	// ErrItemNotFound is returned by operations addressing an item id
	// that is not present in the index.
	ErrItemNotFound = errors.New("annoydb: item not found")

	// ErrMetadataMissing is returned when a query runs before Build has
	// established a forest, or when Build runs before Prepare has fixed
	// the dimensionality.
	ErrMetadataMissing = errors.New("annoydb: metadata missing; call Prepare and Build first")

	// ErrMetadataAlreadyPresent is returned by Build when the reserved
	// metadata record is already occupied, i.e. Build ran twice without
	// an intervening Prepare.
	ErrMetadataAlreadyPresent = builder.ErrMetadataAlreadyPresent

	// ErrSizeMismatch is returned when raw bytes cannot be interpreted as
	// a packed float32 vector.
	ErrSizeMismatch = vecview.ErrSizeMismatch

	// ErrDecode is returned when an on-disk record is structurally
	// invalid; always a fatal, unrepairable condition.
	ErrDecode = node.ErrDecode

	// ErrStorage wraps any failure the underlying store reports that is
	// not otherwise classified above (I/O errors, transaction timeouts).
	ErrStorage = errors.New("annoydb: storage operation failed")
)
