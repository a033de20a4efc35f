// Package idempotency stores the outcome of keyed requests so that a
// retried submission replays the first response instead of running again.
package idempotency

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrInProgress is returned when another request holds the key.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

// Response is a stored outcome.
type Response struct {
	Status int
	Body   []byte
	// Fingerprint identifies the request body that produced the response.
	Fingerprint string
}

// Fingerprint hashes a request body. A key replayed with a body of a
// different fingerprint is a client error, not a retry.
func Fingerprint(body []byte) string {
	return strconv.FormatUint(xxhash.Sum64(body), 16)
}

// Matches reports whether the stored response was produced for a body with
// the given fingerprint.
func (r *Response) Matches(fingerprint string) bool {
	return r.Fingerprint == fingerprint
}

// Store claims keys and records responses.
type Store interface {
	// Begin claims key. It returns nil when the caller now owns the key, a
	// stored Response when the key already completed, or ErrInProgress.
	Begin(ctx context.Context, key string) (*Response, error)
	// Complete stores the response for an owned key.
	Complete(ctx context.Context, key string, resp Response) error
	// Release drops an owned key so the request may be retried.
	Release(ctx context.Context, key string) error
}

var (
	_ Store = Noop{}
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)

// Key namespaces a client key by company.
func Key(companyID, key string) string {
	return "pos:idempotency:" + companyID + ":" + key
}

func encode(resp Response) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("status")
	e.Int(resp.Status)
	e.FieldStart("body")
	e.Base64(resp.Body)
	e.FieldStart("fingerprint")
	e.Str(resp.Fingerprint)
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

func decode(data []byte) (*Response, error) {
	var resp Response
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			resp.Status, err = d.Int()
		case "body":
			resp.Body, err = d.Base64()
		case "fingerprint":
			resp.Fingerprint, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode stored response")
	}
	return &resp, nil
}

// Noop never stores anything; every request runs.
type Noop struct{}

func (Noop) Begin(context.Context, string) (*Response, error) { return nil, nil }
func (Noop) Complete(context.Context, string, Response) error { return nil }
func (Noop) Release(context.Context, string) error { return nil }

// Memory keeps keys in process memory. It serves single-instance runs and
// tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Begin(_ context.Context, key string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.now().After(e.expires) {
		m.entries[key] = memoryEntry{data: pending, expires: m.now().Add(m.ttl)}
		return nil, nil
	}
	if isPending(e.data) {
		return nil, ErrInProgress
	}
	return decode(e.data)
}

func (m *Memory) Complete(_ context.Context, key string, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: encode(resp), expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
