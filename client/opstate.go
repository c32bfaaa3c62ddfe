package client

import "sync"

// opState tracks one named async operation. Every operation that the UI can
// observe gets its own slot so one operation's failure does not clobber
// another's state.
type opState struct {
	mu      sync.Mutex
	loading bool
	err     error
}

func (o *opState) begin() {
	o.mu.Lock()
	o.loading = true
	o.err = nil
	o.mu.Unlock()
}

func (o *opState) finish(err error) {
	o.mu.Lock()
	o.loading = false
	o.err = err
	o.mu.Unlock()
}

func (o *opState) reset() {
	o.mu.Lock()
	o.loading = false
	o.err = nil
	o.mu.Unlock()
}

// IsLoading reports whether the operation is in flight.
func (o *opState) IsLoading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// Err returns the operation's last error, if any.
func (o *opState) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}
