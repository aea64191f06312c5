package workflow

import (
	"sync"
	"testing"
	"time"
)

func TestBackoffFor_DoublesAndCaps(t *testing.T) {
	initial := 5 * time.Second
	max := 10 * time.Minute

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{8, 640 * time.Second},
		{9, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		got := backoffFor(tc.attempt, initial, max)
		if got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}

func TestBackoffFor_ZeroAttemptTreatedAsFirst(t *testing.T) {
	got := backoffFor(0, 5*time.Second, 10*time.Minute)
	if got != 5*time.Second {
		t.Fatalf("expected initial backoff for attempt 0, got %s", got)
	}
}

// DB-free model of the dispatch semantics: a claimed event is processed
// exactly once even under duplicate delivery, and events of one store never
// interleave.

type fakeFolder struct {
	muByStore map[string]*sync.Mutex
	mu        sync.Mutex
	applied   map[string]bool
	folds     int
}

func newFakeFolder() *fakeFolder {
	return &fakeFolder{
		muByStore: map[string]*sync.Mutex{},
		applied:   map[string]bool{},
	}
}

func (f *fakeFolder) fold(storeID, eventID string, fn func()) {
	// Serialize per store (models the per-store lock around ProjectEvent).
	f.mu.Lock()
	sm := f.muByStore[storeID]
	if sm == nil {
		sm = &sync.Mutex{}
		f.muByStore[storeID] = sm
	}
	f.mu.Unlock()

	sm.Lock()
	defer sm.Unlock()

	// Deduplicate on the event id (models the natural-id existence checks).
	f.mu.Lock()
	if f.applied[eventID] {
		f.mu.Unlock()
		return
	}
	f.applied[eventID] = true
	f.mu.Unlock()

	fn()

	f.mu.Lock()
	f.folds++
	f.mu.Unlock()
}

func TestDuplicateDelivery_FoldsOnce(t *testing.T) {
	f := newFakeFolder()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.fold("store-1", "event-1", func() {})
		}()
	}
	wg.Wait()

	if f.folds != 1 {
		t.Fatalf("expected exactly 1 fold, got %d", f.folds)
	}
}

func TestPerStoreSerialization_NoInterleaving(t *testing.T) {
	f := newFakeFolder()

	var order []string
	var orderMu sync.Mutex
	record := func(s string) {
		orderMu.Lock()
		order = append(order, s)
		orderMu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.fold("store-1", "ev-"+id, func() {
				record("start-" + id)
				time.Sleep(time.Millisecond)
				record("end-" + id)
			})
		}()
	}
	wg.Wait()

	// Every start must be immediately followed by its own end.
	for i := 0; i < len(order); i += 2 {
		start := order[i]
		end := order[i+1]
		if start[:6] != "start-" || end[:4] != "end-" || start[6:] != end[4:] {
			t.Fatalf("interleaved folds for one store: %v", order)
		}
	}
}
