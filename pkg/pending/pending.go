// Package pending correlates in-flight requests with their responses.
//
// Each request is filed under a correlation token. The first Resolve for a
// token removes the entry and completes its Call; later responses bearing
// the same token find nothing and are ignored.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrDuplicateToken is returned when a token is already pending.
	ErrDuplicateToken = errors.New("correlation token already pending")

	// ErrTableFull is returned when the pending limit has been reached.
	ErrTableFull = errors.New("too many pending requests")

	// ErrClosed is the default error for calls failed by Close.
	ErrClosed = errors.New("correlation table closed")
)

// Call is a single-assignment result for one request.
type Call struct {
	Token   string
	Action  string
	Started time.Time

	done chan struct{}
	once sync.Once
	data json.RawMessage
	err  error
}

func newCall(token, action string) *Call {
	return &Call{
		Token:   token,
		Action:  action,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Done is closed once the call has a result.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result returns the outcome. It must only be called after Done is closed.
func (c *Call) Result() (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	default:
		return nil, errors.New("pending: result read before completion")
	}
}

// Wait blocks until the call completes or ctx ends.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// complete stores the outcome. Only the first call has any effect.
func (c *Call) complete(data json.RawMessage, err error) bool {
	won := false
	c.once.Do(func() {
		c.data = data
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

// Table maps correlation tokens to pending calls.
type Table struct {
	mu     sync.Mutex
	calls  map[string]*Call
	limit  int
	closed error
}

// New creates a table. limit caps the number of pending calls; 0 means no cap.
func New(limit int) *Table {
	return &Table{
		calls: make(map[string]*Call),
		limit: limit,
	}
}

// Insert files a new call under token.
func (t *Table) Insert(token, action string) (*Call, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed != nil {
		return nil, t.closed
	}
	if _, exists := t.calls[token]; exists {
		return nil, ErrDuplicateToken
	}
	if t.limit > 0 && len(t.calls) >= t.limit {
		return nil, ErrTableFull
	}

	c := newCall(token, action)
	t.calls[token] = c
	return c, nil
}

// Resolve removes the call filed under token and completes it with data or
// err. It reports false when no call was pending under token.
func (t *Table) Resolve(token string, data json.RawMessage, err error) bool {
	t.mu.Lock()
	c, ok := t.calls[token]
	if ok {
		delete(t.calls, token)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	return c.complete(data, err)
}

// Remove withdraws a call without completing it. Used when the caller has
// stopped waiting.
func (t *Table) Remove(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.calls[token]; !ok {
		return false
	}
	delete(t.calls, token)
	return true
}

// Get returns the call pending under token without removing it.
func (t *Table) Get(token string) (*Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.calls[token]
	return c, ok
}

// Has reports whether token is pending.
func (t *Table) Has(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.calls[token]
	return ok
}

// Len returns the number of pending calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.calls)
}

// Tokens returns the pending tokens, sorted.
func (t *Table) Tokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.calls))
	for token := range t.calls {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// Close fails every pending call with err (ErrClosed if nil) and makes
// further inserts fail with the same error. It returns how many calls were
// failed. Closing twice is a no-op.
func (t *Table) Close(err error) int {
	if err == nil {
		err = ErrClosed
	}

	t.mu.Lock()
	if t.closed != nil {
		t.mu.Unlock()
		return 0
	}
	t.closed = err
	calls := t.calls
	t.calls = make(map[string]*Call)
	t.mu.Unlock()

	for _, c := range calls {
		c.complete(nil, err)
	}
	return len(calls)
}
