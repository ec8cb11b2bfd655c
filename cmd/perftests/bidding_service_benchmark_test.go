package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"
)

// PlaceBid on isolated listings (low contention)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	_, svc := setupService(b.N, 50)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		actor := bidder(fmt.Sprintf("user_%d", i))
		if _, err := svc.PlaceBid(ctx, actor, listingID(i), amount(50+int64(rand.Intn(100)))); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// PlaceBid on one shared listing (high contention)
func Benchmark_PlaceBid_ConcurrentSharedListing(b *testing.B) {
	_, svc := setupService(1, 50)
	ctx := context.Background()
	var lastBid int64 = 50

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			actor := bidder(fmt.Sprintf("user_parallel_%d", rnd.Int()))
			next := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = svc.PlaceBid(ctx, actor, listingID(0), amount(next))
		}
	})
}

// GetListingPage on a listing with a deep bid history
func Benchmark_GetListingPage_SingleThreaded(b *testing.B) {
	_, svc := setupService(1, 50)
	ctx := context.Background()

	for j := 0; j < 100; j++ {
		_, _ = svc.PlaceBid(ctx, bidder(fmt.Sprintf("user_%d", j)), listingID(0), amount(50+int64(j)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := svc.GetListingPage(ctx, nil, listingID(0), ""); err != nil {
			b.Fatalf("failed to get listing page: %v", err)
		}
	}
}

// Readers and writers on one shared listing, 70% reads
func Benchmark_MixedWorkload_SharedListing(b *testing.B) {
	_, svc := setupService(1, 50)
	ctx := context.Background()

	for j := 0; j < 50; j++ {
		_, _ = svc.PlaceBid(ctx, bidder(fmt.Sprintf("user_seed_%d", j)), listingID(0), amount(50+int64(j*2)))
	}

	var lastBid int64 = 150

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if rnd.Intn(10) < 3 {
				actor := bidder(fmt.Sprintf("user_writer_%d", rnd.Int()))
				next := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_, _ = svc.PlaceBid(ctx, actor, listingID(0), amount(next))
				continue
			}
			_, _ = svc.ListActive(ctx)
		}
	})
}

// Notification counts for an account watching many listings
func Benchmark_Notifications(b *testing.B) {
	_, svc := setupService(200, 10)
	ctx := context.Background()
	watcher := bidder("watcher")

	for i := 0; i < 200; i++ {
		if _, err := svc.ToggleWatchlist(ctx, watcher, listingID(i)); err != nil {
			b.Fatalf("failed to watch listing: %v", err)
		}
		if i%2 == 0 {
			_, _ = svc.PlaceBid(ctx, bidder("other"), listingID(i), amount(20))
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		counts, err := svc.Notifications(ctx, watcher)
		if err != nil {
			b.Fatalf("failed to count notifications: %v", err)
		}
		if counts.Watchlist != 200 {
			b.Fatalf("expected 200 unseen listings, got %d", counts.Watchlist)
		}
	}
}
