package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// partition is one independently locked map of the store.
type partition[V any] struct {
	mu sync.RWMutex
	m  map[uuid.UUID]V
}

func newPartition[V any]() *partition[V] {
	return &partition[V]{m: make(map[uuid.UUID]V)}
}

// insert stores v unless id is present, in which case the existing value is returned.
func (p *partition[V]) insert(id uuid.UUID, v V) (V, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.m[id]; ok {
		return prev, true
	}
	p.m[id] = v
	var zero V
	return zero, false
}

func (p *partition[V]) get(id uuid.UUID) (V, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[id]
	return v, ok
}

func (p *partition[V]) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

// Store tracks every product through its submission lifecycle.
//
// It is split into five partitions, each behind its own RWMutex, so that
// operations on one concern never block the others. Operations spanning
// partitions lock them in a fixed global order:
//
//	products < results < uploaded < finished < aborted
//
// No lock is ever held while waiting on the network.
type Store struct {
	products *partition[catalog.Product]
	results  *partition[catalog.UploadResult]
	uploaded *partition[string]
	finished *partition[string]
	aborted  *partition[string]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		products: newPartition[catalog.Product](),
		results:  newPartition[catalog.UploadResult](),
		uploaded: newPartition[string](),
		finished: newPartition[string](),
		aborted:  newPartition[string](),
	}
}

// Entry is a consistent view of everything known about one identity.
// Status is empty while the product has no submission code.
type Entry struct {
	ID      uuid.UUID
	Product catalog.Product
	Code    string
	Status  catalog.Status
	Result  *catalog.UploadResult
}

// Counts reports the size of every partition.
type Counts struct {
	Products int `json:"products"`
	Results  int `json:"results"`
	Uploaded int `json:"uploaded"`
	Finished int `json:"finished"`
	Aborted  int `json:"aborted"`
}

// InsertProduct records p under id. An existing product is never replaced;
// it is returned with existed=true instead.
func (s *Store) InsertProduct(id uuid.UUID, p catalog.Product) (prev catalog.Product, existed bool) {
	prev, existed = s.products.insert(id, p.Clone())
	if existed {
		return prev.Clone(), true
	}
	return catalog.Product{}, false
}

// InsertUpload records the submission code for id, putting it in the
// UPLOADED state. An existing code is never replaced.
func (s *Store) InsertUpload(id uuid.UUID, code string) (prev string, existed bool) {
	return s.uploaded.insert(id, code)
}

// InsertResult records the detailed result for id. First write wins.
func (s *Store) InsertResult(id uuid.UUID, r catalog.UploadResult) (prev catalog.UploadResult, existed bool) {
	prev, existed = s.results.insert(id, r.Clone())
	if existed {
		return prev.Clone(), true
	}
	return catalog.UploadResult{}, false
}

// Status returns the submission code and lifecycle state for id.
func (s *Store) Status(id uuid.UUID) (code string, st catalog.Status, ok bool) {
	// Archive holds uploaded and the target partition together, so an
	// identity missing from uploaded here is already visible in its target.
	if code, ok := s.uploaded.get(id); ok {
		return code, catalog.StatusUploaded, true
	}
	if code, ok := s.finished.get(id); ok {
		return code, catalog.StatusFinished, true
	}
	if code, ok := s.aborted.get(id); ok {
		return code, catalog.StatusAborted, true
	}
	return "", "", false
}

// Archive moves id from UPLOADED to the terminal state st. The move is atomic
// for every reader. It fails with ErrNotUploaded when id is not (or no longer)
// in the UPLOADED state, which is how the loser of a concurrent archive learns it lost.
func (s *Store) Archive(id uuid.UUID, st catalog.Status) error {
	var target *partition[string]
	switch st {
	case catalog.StatusFinished:
		target = s.finished
	case catalog.StatusAborted:
		target = s.aborted
	default:
		return fmt.Errorf("archive %s to %q: %w", id, st, ErrInvalidTransition)
	}

	s.uploaded.mu.Lock()
	defer s.uploaded.mu.Unlock()
	target.mu.Lock()
	defer target.mu.Unlock()

	code, ok := s.uploaded.m[id]
	if !ok {
		return fmt.Errorf("archive %s: %w", id, ErrNotUploaded)
	}
	if _, dup := target.m[id]; dup {
		return fmt.Errorf("archive %s: already %s: %w", id, st, ErrInvalidTransition)
	}
	delete(s.uploaded.m, id)
	target.m[id] = code
	return nil
}

// Product returns a copy of the product stored under id.
func (s *Store) Product(id uuid.UUID) (catalog.Product, bool) {
	p, ok := s.products.get(id)
	if !ok {
		return catalog.Product{}, false
	}
	return p.Clone(), true
}

// Result returns a copy of the upload result stored under id.
func (s *Store) Result(id uuid.UUID) (catalog.UploadResult, bool) {
	r, ok := s.results.get(id)
	if !ok {
		return catalog.UploadResult{}, false
	}
	return r.Clone(), true
}

// Products returns a copy of every tracked product.
func (s *Store) Products() map[uuid.UUID]catalog.Product {
	s.products.mu.RLock()
	defer s.products.mu.RUnlock()
	out := make(map[uuid.UUID]catalog.Product, len(s.products.m))
	for id, p := range s.products.m {
		out[id] = p.Clone()
	}
	return out
}

// UploadedIDs lists identities still waiting on the marketplace.
func (s *Store) UploadedIDs() []uuid.UUID {
	s.uploaded.mu.RLock()
	defer s.uploaded.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.uploaded.m))
	for id := range s.uploaded.m {
		ids = append(ids, id)
	}
	return ids
}

// Counts returns partition sizes. Each size is read under its own lock, so
// the numbers may straddle a concurrent archive.
func (s *Store) Counts() Counts {
	return Counts{
		Products: s.products.len(),
		Results:  s.results.len(),
		Uploaded: s.uploaded.len(),
		Finished: s.finished.len(),
		Aborted:  s.aborted.len(),
	}
}

// rlockAll read-locks every partition in global order and returns the unlock func.
func (s *Store) rlockAll() func() {
	s.products.mu.RLock()
	s.results.mu.RLock()
	s.uploaded.mu.RLock()
	s.finished.mu.RLock()
	s.aborted.mu.RLock()
	return func() {
		s.aborted.mu.RUnlock()
		s.finished.mu.RUnlock()
		s.uploaded.mu.RUnlock()
		s.results.mu.RUnlock()
		s.products.mu.RUnlock()
	}
}

func (s *Store) lockAll() func() {
	s.products.mu.Lock()
	s.results.mu.Lock()
	s.uploaded.mu.Lock()
	s.finished.mu.Lock()
	s.aborted.mu.Lock()
	return func() {
		s.aborted.mu.Unlock()
		s.finished.mu.Unlock()
		s.uploaded.mu.Unlock()
		s.results.mu.Unlock()
		s.products.mu.Unlock()
	}
}

// lookupLocked resolves code and state for id. Caller holds the state locks.
func (s *Store) lookupLocked(id uuid.UUID) (string, catalog.Status) {
	if code, ok := s.uploaded.m[id]; ok {
		return code, catalog.StatusUploaded
	}
	if code, ok := s.finished.m[id]; ok {
		return code, catalog.StatusFinished
	}
	if code, ok := s.aborted.m[id]; ok {
		return code, catalog.StatusAborted
	}
	return "", ""
}

// Entries returns a consistent point-in-time view of every tracked product.
func (s *Store) Entries() []Entry {
	unlock := s.rlockAll()
	defer unlock()

	out := make([]Entry, 0, len(s.products.m))
	for id, p := range s.products.m {
		e := Entry{ID: id, Product: p.Clone()}
		e.Code, e.Status = s.lookupLocked(id)
		if r, ok := s.results.m[id]; ok {
			rc := r.Clone()
			e.Result = &rc
		}
		out = append(out, e)
	}
	return out
}

// Unsubmitted lists products that were recorded but never got a submission
// code, typically because the marketplace call failed.
func (s *Store) Unsubmitted() []uuid.UUID {
	unlock := s.rlockAll()
	defer unlock()

	var ids []uuid.UUID
	for id := range s.products.m {
		if _, st := s.lookupLocked(id); st == "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Restore inserts a previously saved entry. It is meant for startup
// reconciliation and rejects entries that would break store invariants.
func (s *Store) Restore(e Entry) error {
	if e.ID == uuid.Nil {
		return errors.New("restore: nil identity")
	}
	if e.Status == "" || e.Code == "" {
		return fmt.Errorf("restore %s: missing code or status", e.ID)
	}
	if e.Result != nil && !e.Status.Terminal() {
		return fmt.Errorf("restore %s: result on %s entry: %w", e.ID, e.Status, ErrInvalidTransition)
	}

	var target *partition[string]
	switch e.Status {
	case catalog.StatusUploaded:
		target = s.uploaded
	case catalog.StatusFinished:
		target = s.finished
	case catalog.StatusAborted:
		target = s.aborted
	default:
		return fmt.Errorf("restore %s: status %q: %w", e.ID, e.Status, ErrInvalidTransition)
	}

	unlock := s.lockAll()
	defer unlock()

	if _, ok := s.products.m[e.ID]; ok {
		return fmt.Errorf("restore %s: %w", e.ID, ErrDuplicateProduct)
	}
	if _, st := s.lookupLocked(e.ID); st != "" {
		return fmt.Errorf("restore %s: %w", e.ID, ErrDuplicateUpload)
	}
	if _, ok := s.results.m[e.ID]; ok && e.Result != nil {
		return fmt.Errorf("restore %s: %w", e.ID, ErrResultConflict)
	}

	s.products.m[e.ID] = e.Product.Clone()
	target.m[e.ID] = e.Code
	if e.Result != nil {
		s.results.m[e.ID] = e.Result.Clone()
	}
	return nil
}
