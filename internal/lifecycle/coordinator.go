package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
	"github.com/imrishuroy/go-product-importflow/internal/identity"
)

// DefaultGatewayTimeout bounds every marketplace call made by the coordinator.
const DefaultGatewayTimeout = 20 * time.Second

// Submission is the outcome of a successful submit.
type Submission struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// View is the lifecycle state of one identity as returned by Check.
// Result stays nil until the detailed result has been fetched.
type View struct {
	ID     uuid.UUID             `json:"id"`
	Code   string                `json:"code"`
	Status catalog.Status        `json:"status"`
	Result *catalog.UploadResult `json:"result"`
}

// claims is a set of identities with an operation in flight.
type claims struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func newClaims() *claims { return &claims{ids: make(map[uuid.UUID]struct{})} }

func (c *claims) acquire(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.ids[id]; busy {
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

func (c *claims) release(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, id)
}

// Coordinator drives products through submit and status checks. It is the
// only writer of the Store during normal operation.
type Coordinator struct {
	store    *Store
	gateway  Gateway
	timeout  time.Duration
	logger   *slog.Logger
	notifier TransitionNotifier

	submitting *claims
	fetching   *claims
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the per-call gateway timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNotifier registers a notifier for terminal transitions.
func WithNotifier(n TransitionNotifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// NewCoordinator returns a Coordinator working on store through gw.
func NewCoordinator(store *Store, gw Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		gateway:    gw,
		timeout:    DefaultGatewayTimeout,
		logger:     slog.Default(),
		submitting: newClaims(),
		fetching:   newClaims(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store for read-only use.
func (c *Coordinator) Store() *Store { return c.store }

// Submit sends p to the marketplace unless an identical product is already
// tracked. If the marketplace call fails, the product stays recorded without
// a code; see Retry.
func (c *Coordinator) Submit(ctx context.Context, p catalog.Product) (Submission, error) {
	id, err := identity.Derive(p)
	if err != nil {
		return Submission{}, err
	}
	if !c.submitting.acquire(id) {
		return Submission{ID: id}, ErrDuplicateProduct
	}
	defer c.submitting.release(id)

	if _, existed := c.store.InsertProduct(id, p); existed {
		return Submission{ID: id}, ErrDuplicateProduct
	}
	return c.send(ctx, id, p)
}

// Retry re-sends a recorded product that never received a submission code.
func (c *Coordinator) Retry(ctx context.Context, id uuid.UUID) (Submission, error) {
	if !c.submitting.acquire(id) {
		return Submission{ID: id}, ErrSubmissionInFlight
	}
	defer c.submitting.release(id)

	p, ok := c.store.Product(id)
	if !ok {
		return Submission{ID: id}, ErrUnknownIdentity
	}
	if code, _, ok := c.store.Status(id); ok {
		return Submission{ID: id, Code: code}, ErrAlreadySubmitted
	}
	c.logger.Info("retrying submission", "id", id, "sku", p.SKU)
	return c.send(ctx, id, p)
}

func (c *Coordinator) send(ctx context.Context, id uuid.UUID, p catalog.Product) (Submission, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	code, err := c.gateway.Submit(callCtx, p)
	cancel()
	if err != nil {
		c.logger.Warn("submit failed, product kept without code", "id", id, "sku", p.SKU, "error", err)
		return Submission{ID: id}, &GatewayError{Op: "submit", Err: err}
	}

	if prev, existed := c.store.InsertUpload(id, code); existed {
		c.logger.Error("submission code already recorded", "id", id, "code", code, "existing", prev)
		return Submission{ID: id, Code: prev}, ErrDuplicateUpload
	}
	c.logger.Info("product submitted", "id", id, "sku", p.SKU, "code", code)
	return Submission{ID: id, Code: code}, nil
}

// Check returns the lifecycle state of id, polling the marketplace while the
// identity is UPLOADED. Terminal identities are answered from the store; the
// only network call for a terminal identity is a one-time FetchResult when its
// result is still missing (the fetch after archive failed or timed out).
//
// When a concurrent check archived id first, the current view is returned
// together with ErrArchiveConflict; callers may treat that as success.
func (c *Coordinator) Check(ctx context.Context, id uuid.UUID) (View, error) {
	code, st, ok := c.store.Status(id)
	if !ok {
		return View{ID: id}, ErrUnknownIdentity
	}
	if st.Terminal() {
		return c.settle(ctx, id, code, st)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	polled, err := c.gateway.PollStatus(callCtx, code)
	cancel()
	if err != nil {
		return View{ID: id, Code: code, Status: st}, &GatewayError{Op: "poll", Code: code, Err: err}
	}
	if !polled.Terminal() {
		return View{ID: id, Code: code, Status: st}, nil
	}

	if err := c.store.Archive(id, polled); err != nil {
		if !errors.Is(err, ErrNotUploaded) {
			return View{ID: id, Code: code, Status: st}, err
		}
		v := c.current(id)
		c.logger.Info("archive lost to concurrent check", "id", id, "code", code, "status", v.Status)
		return v, ErrArchiveConflict
	}
	c.logger.Info("import settled", "id", id, "code", code, "status", polled)
	c.notify(ctx, id, code, polled)

	return c.settle(ctx, id, code, polled)
}

// settle returns the terminal view of id, fetching the detailed result once
// if it is not yet known.
func (c *Coordinator) settle(ctx context.Context, id uuid.UUID, code string, st catalog.Status) (View, error) {
	v := View{ID: id, Code: code, Status: st}
	if r, ok := c.store.Result(id); ok {
		v.Result = &r
		return v, nil
	}
	if !c.fetching.acquire(id) {
		return v, nil
	}
	defer c.fetching.release(id)
	if r, ok := c.store.Result(id); ok {
		v.Result = &r
		return v, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	r, err := c.gateway.FetchResult(callCtx, code)
	cancel()
	if err != nil {
		return v, &GatewayError{Op: "fetch result", Code: code, Err: err}
	}

	if prev, existed := c.store.InsertResult(id, r); existed {
		c.logger.Warn("discarding second upload result", "id", id, "code", code, "error", ErrResultConflict)
		r = prev
	}
	v.Result = &r
	return v, nil
}

func (c *Coordinator) current(id uuid.UUID) View {
	code, st, _ := c.store.Status(id)
	v := View{ID: id, Code: code, Status: st}
	if r, ok := c.store.Result(id); ok {
		v.Result = &r
	}
	return v
}

func (c *Coordinator) notify(ctx context.Context, id uuid.UUID, code string, st catalog.Status) {
	if c.notifier == nil {
		return
	}
	t := Transition{ID: id, Code: code, Status: st}
	if p, ok := c.store.Product(id); ok {
		t.SKU = p.SKU
	}
	if err := c.notifier.NotifyTransition(ctx, t); err != nil {
		c.logger.Warn("transition notification failed", "id", id, "status", st, "error", err)
	}
}
