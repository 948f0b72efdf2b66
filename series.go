package zekta

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/thingmate/zekta/internal/fanout"
	zfs "github.com/thingmate/zekta/pkg/fs"
)

const bucketsDirName = "buckets"

// OpenOptions configures Open.
type OpenOptions struct {
	// ValueByteLength is the fixed width of every value in the series. It
	// must be supplied when creating a new series, and if supplied for an
	// existing series, must match the on-disk config.
	ValueByteLength int
	// Create allows opening a directory with no existing config file. If
	// false, a missing config file is an error.
	Create bool
	// FS overrides the filesystem implementation. Defaults to pkg/fs.Real.
	FS zfs.FS
	// ErrorReporter receives errors that can't be returned to a caller, such
	// as a failed timer-driven auto-flush on one of the series' buckets.
	ErrorReporter ErrorReporter
}

// Series is a sorted, sparse collection of Buckets spanning all time,
// backed by a directory on disk.
type Series struct {
	dir             string
	bucketsPath     string
	configPath      string
	valueByteLength int
	fsys            zfs.FS
	onReport        ErrorReporter

	buckets []*Bucket
	queue   *taskQueue
}

// Open loads or creates a series rooted at dir.
func Open(dir string, opts OpenOptions) (*Series, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = zfs.NewReal()
	}

	onReport := opts.ErrorReporter
	if onReport == nil {
		onReport = defaultErrorReporter
	}

	configPath := filepath.Join(dir, configFileName)

	valueByteLength, err := resolveValueByteLength(fsys, configPath, dir, opts)
	if err != nil {
		return nil, err
	}

	bucketsPath := filepath.Join(dir, bucketsDirName)

	buckets, err := discoverBuckets(fsys, bucketsPath, valueByteLength, onReport)
	if err != nil {
		return nil, err
	}

	return &Series{
		dir:             dir,
		bucketsPath:     bucketsPath,
		configPath:      configPath,
		valueByteLength: valueByteLength,
		fsys:            fsys,
		onReport:        onReport,
		buckets:         buckets,
		queue:           newTaskQueue(),
	}, nil
}

func resolveValueByteLength(fsys zfs.FS, configPath, dir string, opts OpenOptions) (int, error) {
	cfg, loaded, err := loadSeriesConfig(fsys, configPath)
	if err != nil {
		return 0, err
	}

	if loaded {
		if opts.ValueByteLength != 0 && opts.ValueByteLength != cfg.ValueByteLength {
			return 0, fmt.Errorf(
				"caller value byte length %d, config has %d: %w",
				opts.ValueByteLength, cfg.ValueByteLength, ErrIncompatibleConfig,
			)
		}

		return cfg.ValueByteLength, nil
	}

	if !opts.Create {
		return 0, fmt.Errorf("open %s: %w", configPath, os.ErrNotExist)
	}

	if opts.ValueByteLength == 0 {
		return 0, ErrMissingValueByteLength
	}

	cfg = seriesConfig{Version: configVersion, ValueByteLength: opts.ValueByteLength}
	if err := writeSeriesConfig(fsys, dir, configPath, cfg); err != nil {
		return 0, err
	}

	return cfg.ValueByteLength, nil
}

func discoverBuckets(fsys zfs.FS, bucketsPath string, valueByteLength int, onReport ErrorReporter) ([]*Bucket, error) {
	entries, err := fsys.ReadDir(bucketsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("list %s: %w", bucketsPath, err)
	}

	buckets := make([]*Bucket, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		id, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bucket file %q: %w", entry.Name(), ErrBadBucketFile)
		}

		buckets = append(buckets, newBucket(id, valueByteLength, bucketsPath, fsys, onReport))
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].id < buckets[j].id })

	return buckets, nil
}

// ValueByteLength returns the series' fixed value width.
func (s *Series) ValueByteLength() int { return s.valueByteLength }

// Close flushes nothing; it stops every bucket's and the series' own
// background timers/workers. Callers wanting durability must Flush first.
func (s *Series) Close() {
	s.queue.Do(func() {
		for _, b := range s.buckets {
			b.Close()
		}
	})
	s.queue.Close()
}

// Push routes a single entry to its bucket.
func (s *Series) Push(t float64, v []byte) error {
	var (
		b   *Bucket
		err error
	)

	s.queue.Do(func() {
		b, err = s.getOrCreateBucket(t)
	})

	if err != nil {
		return err
	}

	return b.Push(t, v)
}

// Insert sorts entries by time, then routes each to its bucket and awaits
// all of them, settling the result per the fan-out aggregation rule.
func (s *Series) Insert(entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	tasks := make([]func() (struct{}, error), len(sorted))

	var (
		buckets []*Bucket
		bErr    error
	)

	s.queue.Do(func() {
		buckets = make([]*Bucket, len(sorted))

		for i, e := range sorted {
			b, err := s.getOrCreateBucket(e.Time)
			if err != nil {
				bErr = err

				return
			}

			buckets[i] = b
		}
	})

	if bErr != nil {
		return bErr
	}

	for i, e := range sorted {
		i, e := i, e

		tasks[i] = func() (struct{}, error) {
			return struct{}{}, buckets[i].Push(e.Time, e.Value)
		}
	}

	_, err := fanout.Run(tasks)

	return err
}

// Select fans out across every bucket covered by opts' range and
// concatenates the results in the requested direction.
func (s *Series) Select(opts SelectOptions) ([]Entry, error) {
	from, to, desc := opts.resolve()

	var (
		covered []*Bucket
		err     error
	)

	s.queue.Do(func() {
		covered, err = s.bucketsInRange(from, to)
	})

	if err != nil {
		return nil, err
	}

	if desc {
		reverseBuckets(covered)
	}

	tasks := make([]func() ([]Entry, error), len(covered))
	for i, b := range covered {
		b := b

		tasks[i] = func() ([]Entry, error) {
			return b.Select(opts)
		}
	}

	results, err := fanout.Run(tasks)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, entries := range results {
		out = append(out, entries...)
	}

	return out, nil
}

// Delete fans out across every covered bucket in parallel.
func (s *Series) Delete(opts RangeOptions) error {
	from, to := opts.resolve()

	var (
		covered []*Bucket
		err     error
	)

	s.queue.Do(func() {
		covered, err = s.bucketsInRange(from, to)
	})

	if err != nil {
		return err
	}

	tasks := make([]func() (struct{}, error), len(covered))
	for i, b := range covered {
		b := b

		tasks[i] = func() (struct{}, error) {
			return struct{}{}, b.Delete(opts)
		}
	}

	_, err = fanout.Run(tasks)

	return err
}

// Drop truncates every bucket to zero length, in parallel.
func (s *Series) Drop() error {
	var buckets []*Bucket

	s.queue.Do(func() {
		buckets = append([]*Bucket(nil), s.buckets...)
	})

	tasks := make([]func() (struct{}, error), len(buckets))
	for i, b := range buckets {
		b := b

		tasks[i] = func() (struct{}, error) {
			return struct{}{}, b.Drop()
		}
	}

	_, err := fanout.Run(tasks)

	return err
}

// Flush persists every dirty bucket, in parallel.
func (s *Series) Flush(unload bool) error {
	var buckets []*Bucket

	s.queue.Do(func() {
		buckets = append([]*Bucket(nil), s.buckets...)
	})

	tasks := make([]func() (struct{}, error), len(buckets))
	for i, b := range buckets {
		b := b

		tasks[i] = func() (struct{}, error) {
			return struct{}{}, b.Flush(unload)
		}
	}

	_, err := fanout.Run(tasks)

	return err
}

// getOrCreateBucket must run on the series' queue.
func (s *Series) getOrCreateBucket(t float64) (*Bucket, error) {
	id := bucketIDForTime(t)

	idx := lowerBound(len(s.buckets), func(i int) int {
		switch {
		case s.buckets[i].id < id:
			return -1
		case s.buckets[i].id > id:
			return 1
		default:
			return 0
		}
	})

	if idx < len(s.buckets) && s.buckets[idx].id == id {
		return s.buckets[idx], nil
	}

	b := newBucket(id, s.valueByteLength, s.bucketsPath, s.fsys, s.onReport)

	s.buckets = append(s.buckets, nil)
	copy(s.buckets[idx+1:], s.buckets[idx:])
	s.buckets[idx] = b

	return b, nil
}

// bucketsInRange must run on the series' queue. It returns the slice of
// buckets whose id falls in [bucketIDForTime(from), bucketIDForTime(to)],
// plus, when no bucket has exactly the end id, the first bucket after it;
// that extra bucket's own range check makes it select or delete nothing.
func (s *Series) bucketsInRange(from, to float64) ([]*Bucket, error) {
	if from > to {
		return nil, errors.New("zekta: from after to")
	}

	idOf := func(i int) int64 { return s.buckets[i].id }

	fromIdx := 0
	if !math.IsInf(from, -1) {
		fromID := bucketIDForTime(from)

		fromIdx = lowerBound(len(s.buckets), func(i int) int {
			switch {
			case idOf(i) < fromID:
				return -1
			case idOf(i) > fromID:
				return 1
			default:
				return 0
			}
		})
	}

	toIdx := len(s.buckets)
	if !math.IsInf(to, 1) {
		toID := bucketIDForTime(to)

		toIdx = lowerBound(len(s.buckets), func(i int) int {
			switch {
			case idOf(i) < toID:
				return -1
			case idOf(i) > toID:
				return 1
			default:
				return 0
			}
		})

		toIdx++
		if toIdx > len(s.buckets) {
			toIdx = len(s.buckets)
		}
	}

	if fromIdx >= toIdx {
		return nil, nil
	}

	return append([]*Bucket(nil), s.buckets[fromIdx:toIdx]...), nil
}

func reverseBuckets(buckets []*Bucket) {
	for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
		buckets[i], buckets[j] = buckets[j], buckets[i]
	}
}
