package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strayhome/secstate/cache"
)

// ErrAlreadyLocked is an exported constant or variable used by the security-state engine.
var ErrAlreadyLocked = errors.New("lease already held")

// ErrNotHolder is returned when a renew or release names a holder other than the current one.
var ErrNotHolder = errors.New("lease held by another principal")

// ErrNotHeld is returned when a renew targets a record with no live lease.
var ErrNotHeld = errors.New("lease not held")

// ErrRecordCorrupt is returned when a stored lease value cannot be decoded.
var ErrRecordCorrupt = errors.New("lease record corrupt")

// AlreadyLockedError carries the conflicting holder alongside the
// [ErrAlreadyLocked] verdict so callers can show who has the record open.
type AlreadyLockedError struct {
	RecordID  string
	Holder    string
	ExpiresAt int64
}

func (e *AlreadyLockedError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("lease already held: %s", e.RecordID)
	}
	return fmt.Sprintf("lease already held: %s by %s", e.RecordID, e.Holder)
}

// Unwrap ties the typed conflict to the package sentinel, so both errors.Is
// and errors.As work on an acquire failure.
func (e *AlreadyLockedError) Unwrap() error { return ErrAlreadyLocked }

const (
	defaultTTL       = 15 * time.Minute
	defaultKeyPrefix = "lease"
)

// Config defines a public type used by secstate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// TTL is how long an acquired or renewed lease stays held without
	// another renew. Zero selects the 15 minute default.
	TTL time.Duration

	// KeyPrefix namespaces lease keys inside the store. Zero selects
	// "lease".
	KeyPrefix string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Status reports the observable state of one record's lease.
type Status struct {
	Held      bool
	Holder    string
	ExpiresAt int64
}

// Manager coordinates edit leases over a [cache.Store]. Acquisition rides the
// store's set-if-absent primitive, so two concurrent acquires of a free
// record produce exactly one holder.
type Manager struct {
	store  cache.Store
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(store cache.Store, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("lease: store required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, ttl: ttl, prefix: prefix, now: now}, nil
}

func (m *Manager) key(recordID string) string {
	return m.prefix + ":" + recordID
}

func (m *Manager) read(ctx context.Context, recordID string) (*Lease, error) {
	data, err := m.store.Get(ctx, m.key(recordID))
	if err != nil {
		return nil, err
	}
	l, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	l.RecordID = recordID
	return l, nil
}

// Acquire takes the lease on recordID for holder. A record already held by
// someone else fails with [AlreadyLockedError] naming the current holder; a
// record already held by the same holder has its expiry extended instead.
func (m *Manager) Acquire(ctx context.Context, recordID, holder string) (*Lease, error) {
	if recordID == "" || holder == "" {
		return nil, errors.New("lease: record id and holder required")
	}

	now := m.now()
	l := &Lease{
		RecordID:   recordID,
		Holder:     holder,
		AcquiredAt: now.Unix(),
		ExpiresAt:  now.Add(m.ttl).Unix(),
	}
	data, err := Encode(l)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		won, err := m.store.SetIfAbsent(ctx, m.key(recordID), data, m.ttl)
		if err != nil {
			return nil, err
		}
		if won {
			return l, nil
		}

		current, err := m.read(ctx, recordID)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				// The holder released or lapsed between our set and
				// read. One more swing at the empty slot.
				continue
			}
			return nil, err
		}
		if current.Holder == holder {
			return m.extend(ctx, current, now)
		}
		return nil, &AlreadyLockedError{
			RecordID:  recordID,
			Holder:    current.Holder,
			ExpiresAt: current.ExpiresAt,
		}
	}
	return nil, &AlreadyLockedError{RecordID: recordID}
}

// Renew extends a held lease from now. Only the current holder may renew; a
// lapsed or missing lease reports [ErrNotHeld] so the caller knows to
// re-acquire rather than keep editing.
func (m *Manager) Renew(ctx context.Context, recordID, holder string) (*Lease, error) {
	if recordID == "" || holder == "" {
		return nil, errors.New("lease: record id and holder required")
	}

	current, err := m.read(ctx, recordID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrNotHeld
		}
		return nil, err
	}

	now := m.now()
	if now.Unix() >= current.ExpiresAt {
		return nil, ErrNotHeld
	}
	if current.Holder != holder {
		return nil, ErrNotHolder
	}
	return m.extend(ctx, current, now)
}

// Release frees a held lease. Releasing a record that is not held is a
// no-op, so retries and duplicate releases stay safe; releasing someone
// else's lease reports [ErrNotHolder].
func (m *Manager) Release(ctx context.Context, recordID, holder string) error {
	if recordID == "" || holder == "" {
		return errors.New("lease: record id and holder required")
	}

	current, err := m.read(ctx, recordID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil
		}
		return err
	}
	if current.Holder != holder {
		return ErrNotHolder
	}
	return m.store.Delete(ctx, m.key(recordID))
}

// Status reports whether recordID is held and by whom. A lapsed lease whose
// key has not yet expired out of the store reads as free.
func (m *Manager) Status(ctx context.Context, recordID string) (Status, error) {
	current, err := m.read(ctx, recordID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Status{}, nil
		}
		return Status{}, err
	}
	if m.now().Unix() >= current.ExpiresAt {
		return Status{}, nil
	}
	return Status{Held: true, Holder: current.Holder, ExpiresAt: current.ExpiresAt}, nil
}

// extend refreshes the expiry of a lease the caller already holds, keeping
// the original acquisition time.
func (m *Manager) extend(ctx context.Context, current *Lease, now time.Time) (*Lease, error) {
	renewed := &Lease{
		RecordID:   current.RecordID,
		Holder:     current.Holder,
		AcquiredAt: current.AcquiredAt,
		ExpiresAt:  now.Add(m.ttl).Unix(),
	}
	data, err := Encode(renewed)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, m.key(current.RecordID), data, m.ttl); err != nil {
		return nil, err
	}
	return renewed, nil
}
