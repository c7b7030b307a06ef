package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// fakeGateway is a small in-memory marketplace used by the lifecycle tests.
type fakeGateway struct {
	mu       sync.Mutex
	next     int
	statuses map[string]catalog.Status
	results  map[string]catalog.UploadResult

	submitErr error
	pollErr   error
	fetchErr  error

	// pollGate, when set, blocks PollStatus until closed.
	pollGate chan struct{}

	submitCalls int
	pollCalls   int
	fetchCalls  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses: map[string]catalog.Status{},
		results:  map[string]catalog.UploadResult{},
	}
}

func (g *fakeGateway) Submit(ctx context.Context, p catalog.Product) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitCalls++
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.next++
	code := fmt.Sprintf("code-%d", g.next)
	g.statuses[code] = catalog.StatusUploaded
	return code, nil
}

func (g *fakeGateway) PollStatus(ctx context.Context, code string) (catalog.Status, error) {
	g.mu.Lock()
	g.pollCalls++
	gate := g.pollGate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pollErr != nil {
		return "", g.pollErr
	}
	st, ok := g.statuses[code]
	if !ok {
		return "", errors.New("unknown code")
	}
	return st, nil
}

func (g *fakeGateway) FetchResult(ctx context.Context, code string) (catalog.UploadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls++
	if g.fetchErr != nil {
		return catalog.UploadResult{}, g.fetchErr
	}
	r, ok := g.results[code]
	if !ok {
		return catalog.UploadResult{}, errors.New("no result")
	}
	return r, nil
}

// finish moves code to st on the marketplace side and sets its result.
func (g *fakeGateway) finish(code string, st catalog.Status, r catalog.UploadResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[code] = st
	g.results[code] = r
}

func (g *fakeGateway) calls() (submit, poll, fetch int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitCalls, g.pollCalls, g.fetchCalls
}

func (g *fakeGateway) setErrs(submit, poll, fetch error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErr, g.pollErr, g.fetchErr = submit, poll, fetch
}

type recordingNotifier struct {
	mu          sync.Mutex
	transitions []Transition
}

func (n *recordingNotifier) NotifyTransition(ctx context.Context, t Transition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, t)
	return nil
}

type countsRecorder struct {
	mu     sync.Mutex
	counts []Counts
}

func (r *countsRecorder) ReportCounts(ctx context.Context, c Counts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, c)
	return nil
}
