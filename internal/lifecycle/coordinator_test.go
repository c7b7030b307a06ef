package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
	"github.com/imrishuroy/go-product-importflow/internal/identity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(gw Gateway, opts ...Option) (*Coordinator, *Store) {
	s := NewStore()
	opts = append([]Option{WithLogger(quietLogger()), WithTimeout(time.Second)}, opts...)
	return NewCoordinator(s, gw, opts...), s
}

func mustSubmit(t *testing.T, c *Coordinator, sku string) Submission {
	t.Helper()
	sub, err := c.Submit(context.Background(), testProduct(sku))
	if err != nil {
		t.Fatalf("submit %s: %v", sku, err)
	}
	return sub
}

func TestSubmit_RecordsCodeAsUploaded(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	p := testProduct("kt-1")

	sub, err := c.Submit(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ID != identity.MustDerive(p) {
		t.Fatalf("expected derived identity, got %s", sub.ID)
	}
	if sub.Code != "code-1" {
		t.Fatalf("expected code-1, got %q", sub.Code)
	}

	code, st, ok := s.Status(sub.ID)
	if !ok || code != "code-1" || st != catalog.StatusUploaded {
		t.Fatalf("expected code-1 UPLOADED, got %q %q %v", code, st, ok)
	}
}

func TestSubmit_DuplicateRejected(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	p := testProduct("kt-1")

	if _, err := c.Submit(context.Background(), p); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	before := s.Counts()

	if _, err := c.Submit(context.Background(), p); !errors.Is(err, ErrDuplicateProduct) {
		t.Fatalf("expected ErrDuplicateProduct, got %v", err)
	}
	if got := s.Counts(); got != before {
		t.Fatalf("counts changed: %+v -> %+v", before, got)
	}
	if submits, _, _ := gw.calls(); submits != 1 {
		t.Fatalf("expected 1 gateway submit, got %d", submits)
	}
}

func TestSubmit_ConcurrentIdenticalSubmitsSendOnce(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestCoordinator(gw)
	p := testProduct("kt-1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dup := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(context.Background(), p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateProduct):
				dup++
			}
		}()
	}
	wg.Wait()

	if ok != 1 || dup != 19 {
		t.Fatalf("expected 1 success and 19 duplicates, got %d and %d", ok, dup)
	}
	if submits, _, _ := gw.calls(); submits != 1 {
		t.Fatalf("expected 1 gateway submit, got %d", submits)
	}
}

func TestSubmit_GatewayFailureLeavesPartialState(t *testing.T) {
	gw := newFakeGateway()
	gw.setErrs(errors.New("connection refused"), nil, nil)
	c, s := newTestCoordinator(gw)
	p := testProduct("kt-1")

	sub, err := c.Submit(context.Background(), p)
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Op != "submit" {
		t.Fatalf("expected submit GatewayError, got %v", err)
	}

	if _, ok := s.Product(sub.ID); !ok {
		t.Fatal("expected product to stay recorded")
	}
	if _, _, ok := s.Status(sub.ID); ok {
		t.Fatal("expected no lifecycle state after failed submit")
	}
	if got := s.Unsubmitted(); !slices.Equal(got, []uuid.UUID{sub.ID}) {
		t.Fatalf("expected %s unsubmitted, got %v", sub.ID, got)
	}

	if _, err := c.Submit(context.Background(), p); !errors.Is(err, ErrDuplicateProduct) {
		t.Fatalf("expected ErrDuplicateProduct on resubmit, got %v", err)
	}
}

func TestRetry(t *testing.T) {
	gw := newFakeGateway()
	gw.setErrs(errors.New("timeout"), nil, nil)
	c, s := newTestCoordinator(gw)

	sub, err := c.Submit(context.Background(), testProduct("kt-1"))
	if err == nil {
		t.Fatal("expected submit to fail")
	}

	gw.setErrs(nil, nil, nil)
	retried, err := c.Retry(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.ID != sub.ID || retried.Code == "" {
		t.Fatalf("unexpected retry result: %+v", retried)
	}

	if _, st, ok := s.Status(sub.ID); !ok || st != catalog.StatusUploaded {
		t.Fatalf("expected UPLOADED after retry, got %q %v", st, ok)
	}
	if got := s.Unsubmitted(); len(got) != 0 {
		t.Fatalf("expected nothing unsubmitted, got %v", got)
	}

	if _, err := c.Retry(context.Background(), sub.ID); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if _, err := c.Retry(context.Background(), uuid.New()); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestCheck_UnknownIdentity(t *testing.T) {
	c, _ := newTestCoordinator(newFakeGateway())
	if _, err := c.Check(context.Background(), uuid.New()); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestCheck_StillUploadedIsNoop(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	sub := mustSubmit(t, c, "kt-1")
	before := s.Counts()

	v, err := c.Check(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if v.Status != catalog.StatusUploaded || v.Result != nil {
		t.Fatalf("expected UPLOADED without result, got %+v", v)
	}
	if got := s.Counts(); got != before {
		t.Fatalf("counts changed: %+v -> %+v", before, got)
	}
	if _, _, fetches := gw.calls(); fetches != 0 {
		t.Fatalf("expected no fetch, got %d", fetches)
	}
}

func TestCheck_FinishedArchivesAndFetchesOnce(t *testing.T) {
	gw := newFakeGateway()
	n := &recordingNotifier{}
	c, s := newTestCoordinator(gw, WithNotifier(n))
	sub := mustSubmit(t, c, "kt-1")

	want := catalog.UploadResult{Total: 1, Result: []string{"imported"}}
	gw.finish(sub.Code, catalog.StatusFinished, want)

	v, err := c.Check(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if v.Status != catalog.StatusFinished || v.Result == nil || !want.Equal(*v.Result) {
		t.Fatalf("expected FINISHED with result, got %+v", v)
	}

	// Terminal identities are served from the store.
	v2, err := c.Check(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !reflect.DeepEqual(v, v2) {
		t.Fatalf("views differ: %+v vs %+v", v, v2)
	}

	if _, polls, fetches := gw.calls(); polls != 1 || fetches != 1 {
		t.Fatalf("expected 1 poll and 1 fetch, got %d and %d", polls, fetches)
	}
	if got := s.Counts(); got.Uploaded != 0 || got.Finished != 1 || got.Results != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}

	wantTr := Transition{ID: sub.ID, Code: sub.Code, Status: catalog.StatusFinished, SKU: "kt-1"}
	if len(n.transitions) != 1 || n.transitions[0] != wantTr {
		t.Fatalf("expected one transition %+v, got %+v", wantTr, n.transitions)
	}
}

func TestCheck_Aborted(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestCoordinator(gw)
	sub := mustSubmit(t, c, "kt-1")
	gw.finish(sub.Code, catalog.StatusAborted, catalog.UploadResult{Errors: 1, Total: 1, Result: []string{"bad category"}})

	v, err := c.Check(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if v.Status != catalog.StatusAborted || v.Result == nil || v.Result.Errors != 1 {
		t.Fatalf("expected ABORTED with one error, got %+v", v)
	}
}

func TestCheck_PollFailureKeepsUploaded(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	sub := mustSubmit(t, c, "kt-1")
	gw.setErrs(nil, errors.New("502 bad gateway"), nil)

	v, err := c.Check(context.Background(), sub.ID)
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Op != "poll" {
		t.Fatalf("expected poll GatewayError, got %v", err)
	}
	if v.Status != catalog.StatusUploaded {
		t.Fatalf("expected view UPLOADED, got %q", v.Status)
	}
	if _, st, _ := s.Status(sub.ID); st != catalog.StatusUploaded {
		t.Fatalf("expected store UPLOADED, got %q", st)
	}
}

func TestCheck_ResultRecoveredAfterFailedFetch(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	sub := mustSubmit(t, c, "kt-1")
	gw.finish(sub.Code, catalog.StatusFinished, catalog.UploadResult{Total: 1})
	gw.setErrs(nil, nil, errors.New("reset by peer"))

	v, err := c.Check(context.Background(), sub.ID)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if v.Status != catalog.StatusFinished || v.Result != nil {
		t.Fatalf("expected FINISHED without result, got %+v", v)
	}
	if _, ok := s.Result(sub.ID); ok {
		t.Fatal("expected no stored result")
	}

	gw.setErrs(nil, nil, nil)
	v, err = c.Check(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("recovering check: %v", err)
	}
	if v.Result == nil {
		t.Fatal("expected result after recovery")
	}
	if _, polls, fetches := gw.calls(); polls != 1 || fetches != 2 {
		t.Fatalf("expected 1 poll and 2 fetches, got %d and %d", polls, fetches)
	}
}

func TestCheck_ConcurrentChecksArchiveOnce(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	sub := mustSubmit(t, c, "kt-1")
	gw.finish(sub.Code, catalog.StatusFinished, catalog.UploadResult{Total: 1})

	gate := make(chan struct{})
	gw.mu.Lock()
	gw.pollGate = gate
	gw.mu.Unlock()

	const checkers = 2
	errs := make([]error, checkers)
	views := make([]View, checkers)
	var wg sync.WaitGroup
	for i := 0; i < checkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			views[i], errs[i] = c.Check(context.Background(), sub.ID)
		}()
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, polls, _ := gw.calls(); polls == checkers {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("checkers never reached the gateway")
		}
		time.Sleep(time.Millisecond)
	}
	close(gate)
	wg.Wait()

	conflicts := 0
	for i, err := range errs {
		switch {
		case errors.Is(err, ErrArchiveConflict):
			conflicts++
		case err != nil:
			t.Fatalf("checker %d: %v", i, err)
		}
		if views[i].Status != catalog.StatusFinished {
			t.Fatalf("checker %d saw %q", i, views[i].Status)
		}
	}
	if conflicts != 1 {
		t.Fatalf("expected exactly one archive conflict, got %d", conflicts)
	}
	if _, _, fetches := gw.calls(); fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetches)
	}
	if got := s.Counts(); got.Finished != 1 || got.Results != 1 || got.Uploaded != 0 {
		t.Fatalf("unexpected counts: %+v", got)
	}
}

func TestCheck_TimeoutIsGatewayError(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestCoordinator(gw, WithTimeout(20*time.Millisecond))
	sub := mustSubmit(t, c, "kt-1")

	gw.mu.Lock()
	gw.pollGate = make(chan struct{})
	gw.mu.Unlock()

	v, err := c.Check(context.Background(), sub.ID)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if v.Status != catalog.StatusUploaded {
		t.Fatalf("expected UPLOADED, got %q", v.Status)
	}
}

func TestSweep(t *testing.T) {
	gw := newFakeGateway()
	c, s := newTestCoordinator(gw)
	ctx := context.Background()

	var subs []Submission
	for _, sku := range []string{"a", "b", "c", "d"} {
		subs = append(subs, mustSubmit(t, c, sku))
	}
	gw.finish(subs[0].Code, catalog.StatusFinished, catalog.UploadResult{Total: 1})
	gw.finish(subs[1].Code, catalog.StatusFinished, catalog.UploadResult{Total: 1})
	gw.finish(subs[2].Code, catalog.StatusAborted, catalog.UploadResult{Errors: 1, Total: 1})

	report, err := c.Sweep(ctx, 2)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Checked != 4 || report.Finished != 2 || report.Aborted != 1 || report.Pending != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(report.Items))
	}
	if got := s.UploadedIDs(); !slices.Equal(got, []uuid.UUID{subs[3].ID}) {
		t.Fatalf("expected only %s uploaded, got %v", subs[3].ID, got)
	}

	report, err = c.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Checked != 1 {
		t.Fatalf("expected 1 checked, got %d", report.Checked)
	}
}

func TestPollerTickReportsCounts(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestCoordinator(gw)
	sub := mustSubmit(t, c, "a")
	gw.finish(sub.Code, catalog.StatusFinished, catalog.UploadResult{Total: 1})

	rec := &countsRecorder{}
	p := NewPoller(c, time.Hour, 1, rec, quietLogger())
	report := p.Tick(context.Background())

	if report.Finished != 1 {
		t.Fatalf("expected 1 finished, got %d", report.Finished)
	}
	want := Counts{Products: 1, Results: 1, Finished: 1}
	if len(rec.counts) != 1 || rec.counts[0] != want {
		t.Fatalf("expected counts %+v, got %+v", want, rec.counts)
	}
}
