// Package shmtopic implements ShmTopic[T] (spec §4.2): a lock-free
// multi-producer/multi-consumer ring over a shmregion.Region. It is the
// core of HORUS's zero-copy IPC.
//
// The seqlock-style slot publish (write payload, then flip a counter so
// readers know the write is complete) is the same idea the feeder's
// shm/seqlock.go used for its single BBO slot; here it generalizes to an
// N-slot ring with an actual CAS loop on the head cursor, which the
// feeder's own shm/ring.go lacked (it only did plain atomic load/store,
// which is not safe under concurrent producers — spec invariant I4
// requires real multi-producer safety, so this corrects that).
package shmtopic

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/horus-robotics/horus-core/horuserr"
	"github.com/horus-robotics/horus-core/shmregion"
)

// Capacity and element size bounds, spec invariant I3.
const (
	MinCapacity   = 2
	MaxCapacity   = 1 << 20
	MaxElemSize   = 1 << 16
	MaxTotalBytes = 1 << 30

	// MaxConsumers bounds the sampled-min-tail tracker appended after the
	// header (spec §9 open question: the fullness rule needs *some* view
	// of the slowest consumer; we resolve it by publishing a monotonic
	// consumed-count per consumer slot rather than leaving the rule
	// purely self-referential).
	MaxConsumers = 64

	// FullnessNumerator/Denominator encode the ¾·capacity backpressure
	// threshold from spec §4.2.
	FullnessNumerator   = 3
	FullnessDenominator = 4
)

// ringHeader is the spec §4.2 RingHeader, padded to one cache line.
type ringHeader struct {
	Capacity      uint64
	Head          uint64 // atomic, mod-N producer cursor
	TailUnused    uint64 // reserved, spec names it but it is not used
	ElementSize   uint64
	ConsumerCount uint64 // atomic
	Sequence      uint64 // atomic, monotonic total-published count
	_pad          [16]byte
}

const headerSize = int(unsafe.Sizeof(ringHeader{}))

// tailTracker holds a monotonic "messages consumed" counter per consumer
// slot, sampled by the producer to approximate ring fullness (spec §9).
type tailTracker struct {
	Consumed [MaxConsumers]uint64
}

const trackerSize = int(unsafe.Sizeof(tailTracker{}))

// Topic is a handle onto a shared-memory ring of elements of type T.
// Exclusively owned by one Hub instance; the underlying region's header
// is shared by every handle onto the same region (spec §3).
type Topic[T any] struct {
	region *shmregion.Region
	hdr    *ringHeader
	track  *tailTracker
	data   unsafe.Pointer

	capacity uint64
	elemSize uint64

	isConsumer   bool
	consumerIdx  int    // index into tailTracker.Consumed, -1 if not a consumer
	consumerTail uint64 // local mod-N read cursor (spec: private to the handle)

	leakedHandles uint64 // bumped by a WriteHandle's finalizer if it was GC'd uncommitted/unaborted
}

// LeakCount returns the number of WriteHandles observed to have been
// garbage-collected without a Commit or Abort call (spec §9). It relies
// on a runtime finalizer, so it is a lower bound found on GC's schedule,
// not an exact live count.
func (t *Topic[T]) LeakCount() uint64 {
	return atomic.LoadUint64(&t.leakedHandles)
}

func elemSizeOf[T any]() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

func dataOffset(alignment uintptr) int {
	base := headerSize + trackerSize
	if alignment <= 1 {
		return base
	}
	rem := uintptr(base) % alignment
	if rem == 0 {
		return base
	}
	return base + int(alignment-rem)
}

// Create allocates a new ring of the given capacity for element type T.
func Create[T any](path string, capacity int) (*Topic[T], error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, fmt.Errorf("capacity %d: %w", capacity, horuserr.ErrCapacityOutOfRange)
	}
	elemSize := elemSizeOf[T]()
	if elemSize == 0 || elemSize > MaxElemSize {
		return nil, fmt.Errorf("element size %d: %w", elemSize, horuserr.ErrInvalidSize)
	}
	total := uint64(capacity) * elemSize
	if elemSize != 0 && total/elemSize != uint64(capacity) {
		return nil, fmt.Errorf("capacity*element_size overflow: %w", horuserr.ErrCapacityOutOfRange)
	}
	if total > MaxTotalBytes {
		return nil, fmt.Errorf("capacity*element_size %d exceeds max: %w", total, horuserr.ErrCapacityOutOfRange)
	}

	var zero T
	offset := dataOffset(unsafe.Alignof(zero))
	regionSize := offset + int(total)

	region, err := shmregion.Create(path, regionSize)
	if err != nil {
		return nil, err
	}

	buf := region.Bytes()
	hdr := (*ringHeader)(unsafe.Pointer(&buf[0]))
	track := (*tailTracker)(unsafe.Pointer(&buf[headerSize]))
	*hdr = ringHeader{Capacity: uint64(capacity), ElementSize: elemSize}
	*track = tailTracker{}

	return &Topic[T]{
		region:      region,
		hdr:         hdr,
		track:       track,
		data:        unsafe.Pointer(&buf[offset]),
		capacity:    uint64(capacity),
		elemSize:    elemSize,
		consumerIdx: -1,
	}, nil
}

// Open maps an existing ring. It is a consumer handle: its read cursor
// starts at the ring's current head (spec: late joiners do not replay
// history — B3).
func Open[T any](path string) (*Topic[T], error) {
	region, err := shmregion.Open(path)
	if err != nil {
		return nil, err
	}

	buf := region.Bytes()
	if len(buf) < headerSize+trackerSize {
		region.Drop()
		return nil, fmt.Errorf("region %s too small for header: %w", path, horuserr.ErrIO)
	}
	hdr := (*ringHeader)(unsafe.Pointer(&buf[0]))
	track := (*tailTracker)(unsafe.Pointer(&buf[headerSize]))

	wantElemSize := elemSizeOf[T]()
	gotElemSize := atomic.LoadUint64(&hdr.ElementSize)
	if gotElemSize != wantElemSize {
		region.Drop()
		return nil, fmt.Errorf("topic %s: stored element size %d, want %d: %w", path, gotElemSize, wantElemSize, horuserr.ErrElementSizeMismatch)
	}

	var zero T
	offset := dataOffset(unsafe.Alignof(zero))
	capacity := atomic.LoadUint64(&hdr.Capacity)

	idx := int(atomic.AddUint64(&hdr.ConsumerCount, 1) - 1)
	if idx >= MaxConsumers {
		idx = idx % MaxConsumers // degrade gracefully: shared slot, approximate fullness only
	}

	t := &Topic[T]{
		region:      region,
		hdr:         hdr,
		track:       track,
		data:        unsafe.Pointer(&buf[offset]),
		capacity:    capacity,
		elemSize:    wantElemSize,
		isConsumer:  true,
		consumerIdx: idx,
	}
	t.consumerTail = atomic.LoadUint64(&hdr.Head)
	atomic.StoreUint64(&track.Consumed[idx], atomic.LoadUint64(&hdr.Sequence))
	return t, nil
}

// Capacity returns the ring's slot count.
func (t *Topic[T]) Capacity() uint64 { return t.capacity }

// ElementSize returns the stored element size (spec P4).
func (t *Topic[T]) ElementSize() uint64 { return t.elemSize }

func (t *Topic[T]) slotPtr(idx uint64) unsafe.Pointer {
	if idx >= t.capacity {
		panic(fmt.Sprintf("shmtopic: slot index %d out of range [0,%d)", idx, t.capacity))
	}
	offset := uintptr(idx) * uintptr(t.elemSize)
	if offset+uintptr(t.elemSize) > uintptr(t.capacity)*uintptr(t.elemSize) {
		panic("shmtopic: slot access out of data-area bounds")
	}
	return unsafe.Add(t.data, offset)
}

// minConsumedCount samples the tail tracker to approximate how far behind
// the slowest known consumer is. Returns 0 (as if nothing has been read)
// when no consumer has ever opened the ring, which reproduces spec
// scenario S2's "no consumer attached" backpressure behavior.
func (t *Topic[T]) minConsumedCount() uint64 {
	n := int(atomic.LoadUint64(&t.hdr.ConsumerCount))
	if n == 0 {
		return 0
	}
	if n > MaxConsumers {
		n = MaxConsumers
	}
	min := atomic.LoadUint64(&t.track.Consumed[0])
	for i := 1; i < n; i++ {
		v := atomic.LoadUint64(&t.track.Consumed[i])
		if v < min {
			min = v
		}
	}
	return min
}

// wouldExceedFullness implements the ¾·capacity backpressure rule from
// spec §4.2: the outstanding count, Sequence minus the slowest tracked
// consumer's consumed count, is rejected once it reaches ¾·capacity.
func (t *Topic[T]) wouldExceedFullness() bool {
	outstanding := atomic.LoadUint64(&t.hdr.Sequence) - t.minConsumedCount()
	maxUnread := t.capacity * FullnessNumerator / FullnessDenominator
	return outstanding >= maxUnread
}

// Push writes msg into the next ring slot, moving-writing the payload and
// then bumping the sequence counter — the linearization point for the new
// message (spec §4.2 producer protocol steps 1-5).
func (t *Topic[T]) Push(msg T) error {
	for {
		if t.wouldExceedFullness() {
			return fmt.Errorf("topic: %w", horuserr.ErrFull)
		}
		head := atomic.LoadUint64(&t.hdr.Head)
		newHead := (head + 1) % t.capacity
		if atomic.CompareAndSwapUint64(&t.hdr.Head, head, newHead) {
			slot := (*T)(t.slotPtr(head))
			*slot = msg
			atomic.AddUint64(&t.hdr.Sequence, 1)
			return nil
		}
		// lost the CAS race to another producer; retry from the top.
	}
}

// Loan reserves the next slot and returns a handle that publishes the
// message when committed (spec §4.2 loan/receive zero-copy handles).
func (t *Topic[T]) Loan() (*WriteHandle[T], error) {
	for {
		if t.wouldExceedFullness() {
			return nil, fmt.Errorf("topic: %w", horuserr.ErrFull)
		}
		head := atomic.LoadUint64(&t.hdr.Head)
		newHead := (head + 1) % t.capacity
		if atomic.CompareAndSwapUint64(&t.hdr.Head, head, newHead) {
			slot := (*T)(t.slotPtr(head))
			wh := &WriteHandle[T]{topic: t, slot: slot}
			runtime.SetFinalizer(wh, (*WriteHandle[T]).finalize)
			return wh, nil
		}
	}
}

// WriteHandle exclusively owns a reserved slot until Commit or Abort is
// called. Implementers without RAII (i.e. Go) must call one of them
// explicitly; a leaked handle never publishes, and Topic.LeakCount counts
// it once the garbage collector finalizes it without having seen either
// call (spec §9).
type WriteHandle[T any] struct {
	topic      *Topic[T]
	slot       *T
	terminated bool
}

// finalize is the runtime.SetFinalizer callback: a handle reaching this
// without Commit/Abort having set terminated was leaked by its owner.
func (w *WriteHandle[T]) finalize() {
	if !w.terminated {
		atomic.AddUint64(&w.topic.leakedHandles, 1)
	}
}

// Value returns a pointer to the writable slot payload.
func (w *WriteHandle[T]) Value() *T { return w.slot }

// Commit publishes the slot by bumping the sequence counter.
func (w *WriteHandle[T]) Commit() error {
	if w.terminated {
		return fmt.Errorf("write handle already terminated: %w", horuserr.ErrStateViolation)
	}
	w.terminated = true
	runtime.SetFinalizer(w, nil)
	atomic.AddUint64(&w.topic.hdr.Sequence, 1)
	return nil
}

// Abort releases the slot without publishing. The slot's storage is
// simply overwritten by a future producer; no rollback of Head is
// attempted since other producers may already have advanced past it.
func (w *WriteHandle[T]) Abort() {
	w.terminated = true
	runtime.SetFinalizer(w, nil)
}

// Pop returns an owned copy of the next unread message, or ok=false if
// this consumer has no new data (spec §4.2 consumer protocol).
func (t *Topic[T]) Pop() (msg T, ok bool) {
	head := atomic.LoadUint64(&t.hdr.Head)
	if t.consumerTail == head {
		return msg, false
	}
	slot := (*T)(t.slotPtr(t.consumerTail))
	msg = *slot
	t.advanceConsumer()
	return msg, true
}

// Receive returns a read-only borrow into the slot rather than copying
// it. The borrow is valid only until the next Receive/Pop call on this
// handle or until the ring wraps past it.
func (t *Topic[T]) Receive() (msg *T, ok bool) {
	head := atomic.LoadUint64(&t.hdr.Head)
	if t.consumerTail == head {
		return nil, false
	}
	slot := (*T)(t.slotPtr(t.consumerTail))
	t.advanceConsumer()
	return slot, true
}

func (t *Topic[T]) advanceConsumer() {
	t.consumerTail = (t.consumerTail + 1) % t.capacity
	if t.isConsumer {
		atomic.AddUint64(&t.track.Consumed[t.consumerIdx], 1)
	}
}

// Close drops this handle's reference on the underlying region.
func (t *Topic[T]) Close() error {
	return t.region.Drop()
}
