package zekta

import (
	"errors"

	"github.com/thingmate/zekta/internal/fanout"
	"github.com/thingmate/zekta/pkg/arena"
)

// Sentinel errors.
//
// Implementations wrap these with additional context via fmt.Errorf("...: %w").
// Callers MUST classify errors using errors.Is.
var (
	// ErrOutOfRange indicates a time outside a bucket's [from, to) range.
	ErrOutOfRange = errors.New("zekta: time out of range")

	// ErrBadValueLength indicates a value whose length doesn't match the
	// series' configured valueByteLength.
	ErrBadValueLength = errors.New("zekta: bad value length")

	// ErrBadBucketFile indicates a bucket filename stem isn't a valid integer id.
	ErrBadBucketFile = errors.New("zekta: bad bucket file name")

	// ErrUnsupportedVersion indicates a config file with an unknown version.
	ErrUnsupportedVersion = errors.New("zekta: unsupported config version")

	// ErrIncompatibleConfig indicates a caller-supplied valueByteLength that
	// disagrees with the on-disk config.
	ErrIncompatibleConfig = errors.New("zekta: incompatible config")

	// ErrMissingValueByteLength indicates a new series was opened with
	// create=true but no valueByteLength was supplied.
	ErrMissingValueByteLength = errors.New("zekta: missing value byte length")
)

// ErrAggregate indicates a fan-out operation (Select/Delete/Drop/Flush/Insert)
// failed on 2 or more buckets. Declared in internal/fanout and re-exported
// here, since this package already imports internal/fanout and the reverse
// import would cycle.
var ErrAggregate = fanout.ErrAggregate

// ErrCapacityExceeded indicates a bucket's arena was asked to grow past
// arena.MaxBytes. Re-exported from the arena package so callers can write
// errors.Is(err, zekta.ErrCapacityExceeded) without importing pkg/arena
// directly.
var ErrCapacityExceeded = arena.ErrCapacityExceeded
