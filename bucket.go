package zekta

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/thingmate/zekta/pkg/arena"
	zfs "github.com/thingmate/zekta/pkg/fs"
)

// TimeRange is the width, in caller-chosen time units, of a single bucket.
const TimeRange = 512

// TimeBytes is the on-disk width of the time field of a record.
const TimeBytes = 8

const (
	autoFlushDelay  = 1000 * time.Millisecond
	autoUnloadDelay = 5000 * time.Millisecond
)

// Entry is a single (time, value) record.
type Entry struct {
	Time  float64
	Value []byte
}

// ErrorReporter receives errors that can't be returned to a caller, such as
// failures from a timer-driven auto-flush. The default reporter writes to
// os.Stderr.
type ErrorReporter func(error)

func defaultErrorReporter(err error) {
	fmt.Fprintln(os.Stderr, "zekta:", err)
}

// SelectOptions configures Select/Bucket range queries. The zero value
// selects the entire range in ascending order.
type SelectOptions struct {
	// From is the inclusive lower bound. nil means unbounded (-Inf).
	From *float64
	// To is the inclusive upper bound. nil means unbounded (+Inf).
	To *float64
	// Desc reverses iteration order. Zero value (false) is ascending.
	Desc bool
}

func (o SelectOptions) resolve() (from, to float64, desc bool) {
	from = math.Inf(-1)
	if o.From != nil {
		from = *o.From
	}

	to = math.Inf(1)
	if o.To != nil {
		to = *o.To
	}

	return from, to, o.Desc
}

// RangeOptions configures a Delete call. The zero value covers the entire
// range.
type RangeOptions struct {
	From *float64
	To   *float64
}

func (o RangeOptions) resolve() (from, to float64) {
	from = math.Inf(-1)
	if o.From != nil {
		from = *o.From
	}

	to = math.Inf(1)
	if o.To != nil {
		to = *o.To
	}

	return from, to
}

// Bucket is an in-memory sorted run of fixed-size records backed by a
// single file, covering the half-open time range [from, to).
//
// All exported operations are serialised through a single-worker queue: the
// chain keeps running through failed operations, and auto-flush/auto-unload
// timers are disarmed at the start of every operation and rearmed at the
// end, whether it succeeded or failed.
type Bucket struct {
	id              int64
	from            float64
	to              float64
	valueByteLength int
	recordSize      int

	path string
	fsys zfs.FS

	buf   *arena.Buffer // nil means unloaded
	dirty bool

	flushTimer  *time.Timer
	unloadTimer *time.Timer

	queue    *taskQueue
	onReport ErrorReporter
}

func newBucket(id int64, valueByteLength int, bucketsPath string, fsys zfs.FS, onReport ErrorReporter) *Bucket {
	if onReport == nil {
		onReport = defaultErrorReporter
	}

	return &Bucket{
		id:              id,
		from:            float64(id) * TimeRange,
		to:              float64(id+1) * TimeRange,
		valueByteLength: valueByteLength,
		recordSize:      TimeBytes + valueByteLength,
		path:            filepath.Join(bucketsPath, strconv.FormatInt(id, 10)+".bucket"),
		fsys:            fsys,
		queue:           newTaskQueue(),
		onReport:        onReport,
	}
}

// ID returns the bucket's id.
func (b *Bucket) ID() int64 { return b.id }

// bucketIDForTime returns floor(t / TimeRange).
func bucketIDForTime(t float64) int64 {
	return int64(math.Floor(t / TimeRange))
}

// Push inserts a single entry, preserving sortedness by time.
func (b *Bucket) Push(t float64, v []byte) error {
	var err error

	b.queue.Do(func() {
		b.disarmTimers()
		err = b.pushRaw(t, v)
		b.rearmTimers()
	})

	return err
}

// Insert batch-inserts entries; each is validated, and all are applied in
// time order for insertion locality. Duplicate-time entries remain ordered
// among themselves in an unspecified way (the offset for each is computed
// independently against the bucket's state at the time it's applied).
func (b *Bucket) Insert(entries []Entry) error {
	var err error

	b.queue.Do(func() {
		b.disarmTimers()
		err = b.insertRaw(entries)
		b.rearmTimers()
	})

	return err
}

// Select returns entries with From <= time <= To (both inclusive) in the
// requested direction. A request that doesn't overlap this bucket's own
// [from, to) range returns nil without loading the bucket's data.
func (b *Bucket) Select(opts SelectOptions) ([]Entry, error) {
	var (
		entries []Entry
		err     error
	)

	b.queue.Do(func() {
		b.disarmTimers()
		entries, err = b.selectRaw(opts)
		b.rearmTimers()
	})

	return entries, err
}

// Delete removes entries with From <= time <= To (both inclusive).
func (b *Bucket) Delete(opts RangeOptions) error {
	var err error

	b.queue.Do(func() {
		b.disarmTimers()
		err = b.deleteRaw(opts)
		b.rearmTimers()
	})

	return err
}

// Drop truncates the bucket to zero length.
func (b *Bucket) Drop() error {
	var err error

	b.queue.Do(func() {
		b.disarmTimers()
		err = b.dropRaw()
		b.rearmTimers()
	})

	return err
}

// Flush persists the bucket if dirty and optionally releases its data.
func (b *Bucket) Flush(unload bool) error {
	var err error

	b.queue.Do(func() {
		b.disarmTimers()
		err = b.flushRaw(unload)
		b.rearmTimers()
	})

	return err
}

// Close stops the bucket's timers and worker goroutine. It does not flush.
func (b *Bucket) Close() {
	b.queue.Do(func() {
		b.disarmTimers()
	})
	b.queue.Close()
}

func (b *Bucket) disarmTimers() {
	if b.flushTimer != nil {
		b.flushTimer.Stop()
	}

	if b.unloadTimer != nil {
		b.unloadTimer.Stop()
	}
}

func (b *Bucket) rearmTimers() {
	b.flushTimer = time.AfterFunc(autoFlushDelay, func() {
		b.queue.Do(func() {
			b.disarmTimers()

			if err := b.flushRaw(false); err != nil {
				b.onReport(fmt.Errorf("auto-flush bucket %d: %w", b.id, err))
			}

			b.rearmTimers()
		})
	})

	b.unloadTimer = time.AfterFunc(autoUnloadDelay, func() {
		b.queue.Do(func() {
			b.disarmTimers()

			if err := b.flushRaw(true); err != nil {
				b.onReport(fmt.Errorf("auto-unload bucket %d: %w", b.id, err))
			}

			b.rearmTimers()
		})
	})
}

// --- unexported, queue-serialised operations ---

func (b *Bucket) ensureLoaded() error {
	if b.buf != nil {
		return nil
	}

	data, err := b.fsys.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			b.buf = arena.New()

			return nil
		}

		return fmt.Errorf("load bucket %d: %w", b.id, err)
	}

	buf := arena.New()
	if err := buf.Resize(len(data)); err != nil {
		return fmt.Errorf("load bucket %d: %w", b.id, err)
	}

	copy(buf.View(), data)
	b.buf = buf

	return nil
}

func (b *Bucket) entryCount() int {
	if b.buf == nil {
		return 0
	}

	return b.buf.Len() / b.recordSize
}

func (b *Bucket) timeAt(i int) float64 {
	off := i * b.recordSize
	bits := binary.LittleEndian.Uint64(b.buf.View()[off : off+TimeBytes])

	return math.Float64frombits(bits)
}

// insertionOffset implements the insertion position algorithm of §4.3: a
// byte offset at which inserting time t preserves sortedness. On a tie it is
// not necessarily before or after the equal-time entries: a tie with the
// last entry appends, a tie with the first entry prepends, and any other tie
// lands wherever the comparator search lands (see lowerBound).
func (b *Bucket) insertionOffset(t float64) int {
	n := b.entryCount()
	if n == 0 {
		return 0
	}

	if t >= b.timeAt(n-1) {
		return b.buf.Len()
	}

	if t <= b.timeAt(0) {
		return 0
	}

	idx := lowerBound(n, func(i int) int {
		switch bt := b.timeAt(i); {
		case bt < t:
			return -1
		case bt > t:
			return 1
		default:
			return 0
		}
	})

	return idx * b.recordSize
}

// rangeOffsets maps an inclusive [from, to] time range to a [startOff,
// endOff) byte span. The asymmetric walk compensates for insertionOffset not
// guaranteeing leftmost/rightmost on ties: backward for the start (to
// expand across all entries equal to from), forward for the end (to expand
// past all entries equal to to).
func (b *Bucket) rangeOffsets(from, to float64) (startOff, endOff int) {
	n := b.entryCount()

	startIdx := b.insertionOffset(from) / b.recordSize
	for startIdx > 0 && b.timeAt(startIdx-1) == from {
		startIdx--
	}

	endIdx := b.insertionOffset(to) / b.recordSize
	for endIdx < n && b.timeAt(endIdx) == to {
		endIdx++
	}

	return startIdx * b.recordSize, endIdx * b.recordSize
}

func (b *Bucket) insertAt(off int, t float64, v []byte) error {
	oldLen := b.buf.Len()
	newLen := oldLen + b.recordSize

	if err := b.buf.Resize(newLen); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	view := b.buf.View()
	copy(view[off+b.recordSize:newLen], view[off:oldLen])
	binary.LittleEndian.PutUint64(view[off:], math.Float64bits(t))
	copy(view[off+TimeBytes:off+b.recordSize], v)

	return nil
}

func (b *Bucket) deleteSpan(lo, hi int) error {
	if lo == hi {
		return nil
	}

	view := b.buf.View()
	copy(view[lo:], view[hi:])

	return b.buf.Resize(b.buf.Len() - (hi - lo))
}

func (b *Bucket) decodeRange(startOff, endOff int) []Entry {
	view := b.buf.View()
	n := (endOff - startOff) / b.recordSize
	entries := make([]Entry, n)

	for i := range n {
		off := startOff + i*b.recordSize
		bits := binary.LittleEndian.Uint64(view[off : off+TimeBytes])

		value := make([]byte, b.valueByteLength)
		copy(value, view[off+TimeBytes:off+b.recordSize])

		entries[i] = Entry{Time: math.Float64frombits(bits), Value: value}
	}

	return entries
}

func reverseEntries(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

func (b *Bucket) pushRaw(t float64, v []byte) error {
	if t < b.from || t >= b.to {
		return fmt.Errorf("push time %v not in [%v,%v): %w", t, b.from, b.to, ErrOutOfRange)
	}

	if len(v) != b.valueByteLength {
		return fmt.Errorf("push value length %d != %d: %w", len(v), b.valueByteLength, ErrBadValueLength)
	}

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	off := b.insertionOffset(t)
	if err := b.insertAt(off, t, v); err != nil {
		return err
	}

	b.dirty = true

	return nil
}

// insertRaw re-validates each entry's time/value after sorting by time; the
// offset for each entry is still computed one at a time against the
// bucket's current state, so duplicate-time entries land in an
// order-unspecified position relative to each other, matching push.
func (b *Bucket) insertRaw(entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	for _, e := range sorted {
		if e.Time < b.from || e.Time >= b.to {
			return fmt.Errorf("insert time %v not in [%v,%v): %w", e.Time, b.from, b.to, ErrOutOfRange)
		}

		if len(e.Value) != b.valueByteLength {
			return fmt.Errorf("insert value length %d != %d: %w", len(e.Value), b.valueByteLength, ErrBadValueLength)
		}
	}

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	for _, e := range sorted {
		off := b.insertionOffset(e.Time)
		if err := b.insertAt(off, e.Time, e.Value); err != nil {
			return err
		}
	}

	b.dirty = true

	return nil
}

func (b *Bucket) overlapsRequest(from, to float64) bool {
	return !(to < b.from || from >= b.to)
}

func (b *Bucket) selectRaw(opts SelectOptions) ([]Entry, error) {
	from, to, desc := opts.resolve()

	if !b.overlapsRequest(from, to) {
		return nil, nil
	}

	if err := b.ensureLoaded(); err != nil {
		return nil, err
	}

	startOff, endOff := b.rangeOffsets(from, to)
	entries := b.decodeRange(startOff, endOff)

	if desc {
		reverseEntries(entries)
	}

	return entries, nil
}

func (b *Bucket) deleteRaw(opts RangeOptions) error {
	from, to := opts.resolve()

	if !b.overlapsRequest(from, to) {
		return nil
	}

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	startOff, endOff := b.rangeOffsets(from, to)
	if startOff == endOff {
		return nil
	}

	if err := b.deleteSpan(startOff, endOff); err != nil {
		return err
	}

	b.dirty = true

	return nil
}

// dropRaw truncates to zero length without reading the existing file: the
// old content is being discarded regardless of what it was.
func (b *Bucket) dropRaw() error {
	b.buf = arena.New()
	b.dirty = true

	return nil
}

func (b *Bucket) flushRaw(unload bool) error {
	if b.dirty {
		if b.buf == nil || b.buf.Len() == 0 {
			if err := b.removeFile(); err != nil {
				return err
			}
		} else if err := b.writeFile(); err != nil {
			return err
		}

		b.dirty = false
	}

	if unload {
		b.buf = nil
	}

	return nil
}

func (b *Bucket) writeFile() error {
	dir := filepath.Dir(b.path)

	if err := b.fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("flush bucket %d: mkdir: %w", b.id, err)
	}

	if err := b.fsys.WriteFileAtomic(b.path, b.buf.View(), 0o644); err != nil {
		return fmt.Errorf("flush bucket %d: %w", b.id, err)
	}

	return nil
}

func (b *Bucket) removeFile() error {
	err := b.fsys.Remove(b.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("flush bucket %d: remove: %w", b.id, err)
	}

	return nil
}
