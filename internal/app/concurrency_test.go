package app_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
)

func persistedIDs(t *testing.T, kv *fakeKV) []int64 {
	t.Helper()
	// a cacheless store reads kv as is
	ls := app.NewRecordStore(kv, 0).WithSeed(nil).GetLodges(context.Background())
	ids := make([]int64, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func form(name string) app.LodgeForm {
	return app.LodgeForm{Name: ptr(name), Location: ptr("Somewhere"), Price: ptr("100")}
}

func TestConcurrentCreates_DistinctIDs(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		t.Run(fmt.Sprintf("cache=%v", withCache), func(t *testing.T) {
			ctx := context.Background()
			kv := newKV()
			store := app.NewRecordStore(kv, 0)
			if withCache {
				store = store.WithCache(&fakeCache{}, time.Minute)
			}
			svc := app.NewAdminService(store, nil)

			const n = 20
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = map[int64]bool{}
			)
			for i := 0; i < n; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					l, err := svc.CreateOrUpdate(ctx, form(fmt.Sprintf("L%d", i)))
					if err != nil {
						t.Errorf("create %d: %v", i, err)
						return
					}
					mu.Lock()
					ids[l.ID] = true
					mu.Unlock()
				}()
				// readers refill the cache while writers run
				go func() {
					defer wg.Done()
					_ = store.GetLodges(ctx)
				}()
			}
			wg.Wait()

			if len(ids) != n {
				t.Fatalf("want %d distinct ids, got %d", n, len(ids))
			}
			if got := persistedIDs(t, kv); len(got) != 3+n {
				t.Fatalf("want %d persisted lodges, got %v", 3+n, got)
			}
		})
	}
}

func TestConcurrentCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	kv := newKV()
	store := app.NewRecordStore(kv, 0).WithCache(&fakeCache{}, time.Minute)
	svc := app.NewAdminService(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateOrUpdate(ctx, form(fmt.Sprintf("L%d", i))); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	for _, id := range []int64{1, 2, 3} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Delete(ctx, id, true); err != nil {
				t.Errorf("delete %d: %v", id, err)
			}
		}()
	}
	wg.Wait()

	got := persistedIDs(t, kv)
	if len(got) != 10 {
		t.Fatalf("persisted ids = %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("duplicate id %d in %v", got[i], got)
		}
	}
}

// A reader that missed the cache and read the old collection must not put
// it back in the cache after a newer save.
func TestStaleCacheRefill_KeepsAcknowledgedCreate(t *testing.T) {
	ctx := context.Background()
	base := newKV()
	kv := newGatedKV(base, "lodges")
	store := app.NewRecordStore(kv, 0).WithCache(&fakeCache{}, time.Minute)
	svc := app.NewAdminService(store, nil)
	if err := store.SaveLodges(ctx, app.SeedLodges()); err != nil {
		t.Fatal(err)
	}

	kv.armed.Store(true)
	readerDone := make(chan []domain.Lodge)
	go func() { readerDone <- store.GetLodges(ctx) }()
	<-kv.reached

	type result struct {
		l   domain.Lodge
		err error
	}
	aDone := make(chan result)
	go func() {
		l, err := svc.CreateOrUpdate(ctx, form("A"))
		aDone <- result{l, err}
	}()
	close(kv.release)
	<-readerDone
	a := <-aDone
	if a.err != nil {
		t.Fatal(a.err)
	}

	b, err := svc.CreateOrUpdate(ctx, form("B"))
	if err != nil {
		t.Fatal(err)
	}
	if a.l.ID == b.ID {
		t.Fatalf("id %d handed out twice", b.ID)
	}
	got := persistedIDs(t, base)
	if fmt.Sprint(got) != "[1 2 3 4 5]" {
		t.Fatalf("persisted ids = %v", got)
	}
	if ls := store.GetLodges(ctx); len(ls) != 5 {
		t.Fatalf("cached view has %d lodges", len(ls))
	}
}

// A first-run reader that saw the key absent must not seed over a create
// that committed in the meantime.
func TestSeedRace_KeepsAcknowledgedCreate(t *testing.T) {
	ctx := context.Background()
	base := newKV()
	kv := newGatedKV(base, "lodges")
	store := app.NewRecordStore(kv, 0)
	svc := app.NewAdminService(store, nil)

	kv.armed.Store(true)
	readerDone := make(chan []domain.Lodge)
	go func() { readerDone <- store.GetLodges(ctx) }()
	<-kv.reached

	l, err := svc.CreateOrUpdate(ctx, form("Early"))
	if err != nil {
		t.Fatal(err)
	}
	if l.ID != 4 {
		t.Fatalf("created id %d", l.ID)
	}

	close(kv.release)
	if got := <-readerDone; len(got) != 4 {
		t.Fatalf("reader saw %d lodges", len(got))
	}
	if got := persistedIDs(t, base); fmt.Sprint(got) != "[1 2 3 4]" {
		t.Fatalf("persisted ids = %v", got)
	}
}
