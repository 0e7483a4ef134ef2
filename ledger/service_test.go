package ledger

import (
	"context"
	"testing"

	"github.com/attocash/wallet-core/jobs"
	"github.com/google/go-cmp/cmp"
)

func TestService(t *testing.T) {
	wp := jobs.NewWorkerPool(10, 2)
	t.Cleanup(wp.Stop)

	svc := NewService(NewMemoryStore(), wp)
	ctx := context.Background()

	for _, h := range []uint64{2, 3, 1} {
		e := entry(alice, h)
		if err := svc.SaveEntry(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	last, found, err := svc.LastEntry(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if !found || last.Height != 3 {
		t.Fatalf("expected height 3, got %+v (found %t)", last, found)
	}

	ee, err := svc.ListEntries(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	var heights []uint64
	for _, e := range ee {
		heights = append(heights, e.Height)
	}
	if diff := cmp.Diff([]uint64{3, 2, 1}, heights); diff != "" {
		t.Fatalf("heights mismatch (-want +got):\n%s", diff)
	}

	w := Work{PublicKey: alice, Value: []byte{1, 2, 3}}
	if err := svc.SetWork(ctx, &w); err != nil {
		t.Fatal(err)
	}
	got, found, err := svc.Work(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(w, got); !found || diff != "" {
		t.Fatalf("work mismatch (-want +got):\n%s", diff)
	}

	if err := svc.ClearWork(ctx); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := svc.Work(ctx); found {
		t.Fatal("expected no work after clear")
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := svc.LastEntry(ctx, alice); found {
		t.Fatal("expected no entries after clear")
	}
}

func TestServiceStoppedPool(t *testing.T) {
	wp := jobs.NewWorkerPool(1, 1)
	wp.Stop()

	svc := NewService(NewMemoryStore(), wp)
	if _, _, err := svc.Work(context.Background()); err != jobs.ErrPoolStopped {
		t.Fatalf("expected %v, got %v", jobs.ErrPoolStopped, err)
	}
}
