package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"auction-house/config"
	"auction-house/internal/auction"
	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stores lists every AuctionDB implementation the shared tests run against
var stores = []struct {
	name string
	open func(t *testing.T) AuctionDB
}{
	{name: "memory", open: func(*testing.T) AuctionDB { return NewMemoryRepo() }},
	{name: "sqlite", open: openSQLite},
}

func openSQLite(t *testing.T) AuctionDB {
	t.Helper()

	db, err := Open(context.Background(), &config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormRepo(db)
}

func forEachStore(t *testing.T, test func(t *testing.T, repo AuctionDB)) {
	for _, s := range stores {
		s := s
		t.Run(s.name, func(t *testing.T) {
			test(t, s.open(t))
		})
	}
}

// Helper to create a new listing owned by creatorID
func newListing(listingID, creatorID, category string, createdAt time.Time) model.Listing {
	return model.Listing{
		ListingID:   listingID,
		Title:       listingID,
		Description: fmt.Sprintf("%s description", listingID),
		StartingBid: decimal.RequireFromString("10.00"),
		Category:    category,
		CreatorID:   creatorID,
		Active:      true,
		CreatedAt:   createdAt,
		LastUpdated: createdAt,
	}
}

func seed(t *testing.T, repo AuctionDB, accounts []string, listings ...model.Listing) {
	t.Helper()
	ctx := context.Background()

	for _, id := range accounts {
		require.NoError(t, repo.CreateAccount(ctx, model.Account{
			AccountID:    id,
			Username:     id,
			PasswordHash: "hash",
			CreatedAt:    base,
		}))
	}
	for _, l := range listings {
		require.NoError(t, repo.CreateListing(ctx, l))
	}
}

// fixedBid returns a BidFunc that accepts unconditionally
func fixedBid(bidID, bidderID, amount string, at time.Time) BidFunc {
	return func(model.Listing, *model.Bid) (model.Bid, error) {
		return model.Bid{
			BidID:     bidID,
			BidderID:  bidderID,
			Amount:    decimal.RequireFromString(amount),
			CreatedAt: at,
		}, nil
	}
}

func listingIDs(listings []model.Listing) []string {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ListingID)
	}
	return ids
}

func TestAuctionDB_Accounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice"})

		err := repo.CreateAccount(ctx, model.Account{AccountID: "other", Username: "alice", PasswordHash: "hash"})
		require.ErrorIs(t, err, auctionerrors.ErrUsernameTaken)

		account, err := repo.GetAccount(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "alice", account.Username)

		account, err = repo.GetAccountByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "alice", account.AccountID)

		_, err = repo.GetAccount(ctx, "nobody")
		require.ErrorIs(t, err, auctionerrors.ErrAccountNotFound)
		_, err = repo.GetAccountByUsername(ctx, "nobody")
		require.ErrorIs(t, err, auctionerrors.ErrAccountNotFound)
	})
}

func TestAuctionDB_Sessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice"})

		err := repo.CreateSession(ctx, model.Session{Token: "orphan", AccountID: "nobody", ExpiresAt: base.Add(time.Hour)})
		require.ErrorIs(t, err, auctionerrors.ErrAccountNotFound)

		require.NoError(t, repo.CreateSession(ctx, model.Session{
			Token:     "token1",
			AccountID: "alice",
			CreatedAt: base,
			ExpiresAt: base.Add(time.Hour),
		}))

		session, err := repo.GetSession(ctx, "token1")
		require.NoError(t, err)
		require.Equal(t, "alice", session.AccountID)
		require.True(t, base.Add(time.Hour).Equal(session.ExpiresAt))

		require.NoError(t, repo.DeleteSession(ctx, "token1"))
		_, err = repo.GetSession(ctx, "token1")
		require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)

		// deleting twice is not an error
		require.NoError(t, repo.DeleteSession(ctx, "token1"))
	})
}

func TestAuctionDB_Listings(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		closed := newListing("closed", "alice", "art", base.Add(3*time.Minute))
		closed.Active = false
		seed(t, repo, []string{"alice", "bob"},
			newListing("old", "alice", "books", base),
			newListing("mid", "bob", "art", base.Add(time.Minute)),
			newListing("new", "alice", "", base.Add(2*time.Minute)),
			closed,
		)

		err := repo.CreateListing(ctx, newListing("orphan", "nobody", "", base))
		require.ErrorIs(t, err, auctionerrors.ErrAccountNotFound)

		listing, err := repo.GetListing(ctx, "mid")
		require.NoError(t, err)
		require.Equal(t, "bob", listing.CreatorID)
		require.True(t, decimal.RequireFromString("10").Equal(listing.StartingBid))
		require.True(t, listing.Active)
		require.Nil(t, listing.WinnerID)

		_, err = repo.GetListing(ctx, "missing")
		require.ErrorIs(t, err, auctionerrors.ErrListingNotFound)

		active, err := repo.ListActiveListings(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"new", "mid", "old"}, listingIDs(active))

		art, err := repo.ListActiveByCategory(ctx, "art")
		require.NoError(t, err)
		require.Equal(t, []string{"mid"}, listingIDs(art))

		none, err := repo.ListActiveByCategory(ctx, "vehicles")
		require.NoError(t, err)
		require.NotNil(t, none)
		require.Empty(t, none)

		categories, err := repo.ListActiveCategories(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"art", "books"}, categories)

		mine, err := repo.ListListingsByCreator(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, []string{"new", "old", "closed"}, listingIDs(mine))
	})
}

func TestAuctionDB_RecordBid(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice", "bob", "carol"}, newListing("listing1", "alice", "", base))

		_, err := repo.GetHighestBid(ctx, "listing1")
		require.ErrorIs(t, err, auctionerrors.ErrNoBids)

		_, err = repo.RecordBid(ctx, "missing", fixedBid("b0", "bob", "11", base))
		require.ErrorIs(t, err, auctionerrors.ErrListingNotFound)

		var seenHighest []*model.Bid
		record := func(bidID, bidderID, amount string, at time.Time) {
			build := fixedBid(bidID, bidderID, amount, at)
			bid, err := repo.RecordBid(ctx, "listing1", func(l model.Listing, highest *model.Bid) (model.Bid, error) {
				require.Equal(t, "listing1", l.ListingID)
				seenHighest = append(seenHighest, highest)
				return build(l, highest)
			})
			require.NoError(t, err)
			require.Equal(t, "listing1", bid.ListingID)
		}

		record("b1", "bob", "12.50", base.Add(time.Second))
		record("b2", "carol", "15", base.Add(2*time.Second))

		require.Nil(t, seenHighest[0])
		require.NotNil(t, seenHighest[1])
		require.Equal(t, "b1", seenHighest[1].BidID)

		// a rejected bid records nothing
		rejected := errors.New("rejected")
		_, err = repo.RecordBid(ctx, "listing1", func(model.Listing, *model.Bid) (model.Bid, error) {
			return model.Bid{}, rejected
		})
		require.ErrorIs(t, err, rejected)

		bids, err := repo.GetBidsByListing(ctx, "listing1")
		require.NoError(t, err)
		require.Len(t, bids, 2)
		require.Equal(t, "b2", bids[0].BidID)
		require.Equal(t, "b1", bids[1].BidID)
		require.True(t, decimal.RequireFromString("12.50").Equal(bids[1].Amount))

		highest, err := repo.GetHighestBid(ctx, "listing1")
		require.NoError(t, err)
		require.Equal(t, "carol", highest.BidderID)

		listing, err := repo.GetListing(ctx, "listing1")
		require.NoError(t, err)
		require.True(t, base.Add(2*time.Second).Equal(listing.LastUpdated))

		_, err = repo.GetBidsByListing(ctx, "missing")
		require.ErrorIs(t, err, auctionerrors.ErrListingNotFound)
	})
}

func TestAuctionDB_ConcurrentBids(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice"}, newListing("listing1", "alice", "", base))

		const bidders = 20
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			seq int
		)

		for i := 1; i <= bidders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				amount := decimal.NewFromInt(int64(10 + i))
				_, _ = repo.RecordBid(ctx, "listing1", func(_ model.Listing, highest *model.Bid) (model.Bid, error) {
					if highest != nil && amount.LessThanOrEqual(highest.Amount) {
						return model.Bid{}, auctionerrors.ErrBidTooLow
					}
					mu.Lock()
					seq++
					at := base.Add(time.Duration(seq) * time.Millisecond)
					mu.Unlock()

					return model.Bid{
						BidID:     fmt.Sprintf("bid%d", i),
						BidderID:  fmt.Sprintf("bidder%d", i),
						Amount:    amount,
						CreatedAt: at,
					}, nil
				})
			}(i)
		}
		wg.Wait()

		bids, err := repo.GetBidsByListing(ctx, "listing1")
		require.NoError(t, err)
		require.NotEmpty(t, bids)

		// in acceptance order every bid beats the one before it
		sort.Slice(bids, func(i, j int) bool { return bids[i].CreatedAt.Before(bids[j].CreatedAt) })
		for i := 1; i < len(bids); i++ {
			require.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount),
				"bid %s (%s) accepted after %s (%s)", bids[i].BidID, bids[i].Amount, bids[i-1].BidID, bids[i-1].Amount)
		}

		highest, err := repo.GetHighestBid(ctx, "listing1")
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(10+bidders).Equal(highest.Amount))
	})
}

func TestAuctionDB_CloseListing(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice", "bob"}, newListing("listing1", "alice", "", base))

		_, err := repo.RecordBid(ctx, "listing1", fixedBid("b1", "bob", "20", base.Add(time.Second)))
		require.NoError(t, err)

		refused := errors.New("refused")
		_, err = repo.CloseListing(ctx, "listing1", func(model.Listing, []model.Bid) (model.Listing, error) {
			return model.Listing{}, refused
		})
		require.ErrorIs(t, err, refused)

		listing, err := repo.GetListing(ctx, "listing1")
		require.NoError(t, err)
		require.True(t, listing.Active)

		closed, err := repo.CloseListing(ctx, "listing1", func(l model.Listing, bids []model.Bid) (model.Listing, error) {
			require.Len(t, bids, 1)
			winner := bids[0].BidderID
			l.Active = false
			l.WinnerID = &winner
			l.LastUpdated = base.Add(time.Minute)
			return l, nil
		})
		require.NoError(t, err)
		require.False(t, closed.Active)
		require.Equal(t, "bob", *closed.WinnerID)
		require.True(t, base.Add(time.Minute).Equal(closed.LastUpdated))

		listing, err = repo.GetListing(ctx, "listing1")
		require.NoError(t, err)
		require.False(t, listing.Active)
		require.NotNil(t, listing.WinnerID)
		require.Equal(t, "bob", *listing.WinnerID)
		require.True(t, base.Add(time.Minute).Equal(listing.LastUpdated))

		active, err := repo.ListActiveListings(ctx)
		require.NoError(t, err)
		require.Empty(t, active)

		_, err = repo.CloseListing(ctx, "missing", func(l model.Listing, _ []model.Bid) (model.Listing, error) { return l, nil })
		require.ErrorIs(t, err, auctionerrors.ErrListingNotFound)
	})
}

func TestAuctionDB_CloseRacesBids(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice"})

		const (
			rounds  = 10
			bidders = 10
		)

		for round := 0; round < rounds; round++ {
			listingID := fmt.Sprintf("listing%d", round)
			require.NoError(t, repo.CreateListing(ctx, newListing(listingID, "alice", "", base)))

			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				seq   int
				start = make(chan struct{})
			)
			tick := func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				seq++
				return base.Add(time.Duration(seq) * time.Millisecond)
			}

			for i := 1; i <= bidders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start

					amount := decimal.NewFromInt(int64(10 + i))
					_, _ = repo.RecordBid(ctx, listingID, func(l model.Listing, highest *model.Bid) (model.Bid, error) {
						if !l.Active {
							return model.Bid{}, auctionerrors.ErrAuctionClosed
						}
						if highest != nil && amount.LessThanOrEqual(highest.Amount) {
							return model.Bid{}, auctionerrors.ErrBidTooLow
						}
						return model.Bid{
							BidID:     fmt.Sprintf("%s-bid%d", listingID, i),
							BidderID:  fmt.Sprintf("bidder%d", i),
							Amount:    amount,
							CreatedAt: tick(),
						}, nil
					})
				}(i)
			}

			var (
				closed   model.Listing
				closeErr error
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start

				closed, closeErr = repo.CloseListing(ctx, listingID, func(l model.Listing, bids []model.Bid) (model.Listing, error) {
					l.Active = false
					l.WinnerID = nil
					if winning := auction.HighestBid(bids); winning != nil {
						winnerID := winning.BidderID
						l.WinnerID = &winnerID
					}
					l.LastUpdated = tick()
					return l, nil
				})
			}()

			close(start)
			wg.Wait()
			require.NoError(t, closeErr)

			listing, err := repo.GetListing(ctx, listingID)
			require.NoError(t, err)
			require.False(t, listing.Active)
			require.True(t, closed.LastUpdated.Equal(listing.LastUpdated))

			bids, err := repo.GetBidsByListing(ctx, listingID)
			require.NoError(t, err)
			for _, bid := range bids {
				require.True(t, bid.CreatedAt.Before(listing.LastUpdated),
					"bid %s at %s accepted after close at %s", bid.BidID, bid.CreatedAt, listing.LastUpdated)
			}

			highest, err := repo.GetHighestBid(ctx, listingID)
			if errors.Is(err, auctionerrors.ErrNoBids) {
				require.Nil(t, listing.WinnerID)
				continue
			}
			require.NoError(t, err)
			require.NotNil(t, listing.WinnerID)
			require.Equal(t, highest.BidderID, *listing.WinnerID)
		}
	})
}

func TestAuctionDB_Comments(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice", "bob"}, newListing("listing1", "alice", "", base))

		for i, body := range []string{"first", "second", "third"} {
			require.NoError(t, repo.CreateComment(ctx, model.Comment{
				CommentID:   fmt.Sprintf("c%d", i),
				ListingID:   "listing1",
				CommenterID: "bob",
				Body:        body,
				CreatedAt:   base.Add(time.Duration(i+1) * time.Minute),
			}))
		}

		err := repo.CreateComment(ctx, model.Comment{CommentID: "cx", ListingID: "missing", CommenterID: "bob", Body: "x", CreatedAt: base})
		require.ErrorIs(t, err, auctionerrors.ErrListingNotFound)

		newest, err := repo.GetCommentsByListing(ctx, "listing1", false)
		require.NoError(t, err)
		require.Len(t, newest, 3)
		require.Equal(t, "third", newest[0].Body)
		require.Equal(t, "first", newest[2].Body)

		oldest, err := repo.GetCommentsByListing(ctx, "listing1", true)
		require.NoError(t, err)
		require.Equal(t, "first", oldest[0].Body)

		listing, err := repo.GetListing(ctx, "listing1")
		require.NoError(t, err)
		require.True(t, base.Add(3*time.Minute).Equal(listing.LastUpdated))
	})
}

func TestAuctionDB_Watchlist(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		closed := newListing("closed", "alice", "", base.Add(time.Hour))
		closed.Active = false
		seed(t, repo, []string{"alice", "bob"},
			newListing("older", "alice", "", base),
			newListing("newer", "alice", "", base.Add(time.Minute)),
			closed,
		)

		for _, id := range []string{"older", "newer", "closed"} {
			watching, err := repo.ToggleWatchlist(ctx, "bob", id, base)
			require.NoError(t, err)
			require.True(t, watching)
		}

		watching, err := repo.IsWatching(ctx, "bob", "older")
		require.NoError(t, err)
		require.True(t, watching)

		watched, err := repo.ListWatchedListings(ctx, "bob")
		require.NoError(t, err)
		require.Equal(t, []string{"newer", "older", "closed"}, listingIDs(watched))

		watching, err = repo.ToggleWatchlist(ctx, "bob", "older", base)
		require.NoError(t, err)
		require.False(t, watching)

		watching, err = repo.IsWatching(ctx, "bob", "older")
		require.NoError(t, err)
		require.False(t, watching)

		watched, err = repo.ListWatchedListings(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, watched)

		_, err = repo.ToggleWatchlist(ctx, "bob", "missing", base)
		require.ErrorIs(t, err, auctionerrors.ErrListingNotFound)
	})
}

func TestAuctionDB_ListingViews(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()
		seed(t, repo, []string{"alice", "bob"}, newListing("listing1", "alice", "", base))

		_, err := repo.GetListingView(ctx, "bob", "listing1")
		require.ErrorIs(t, err, auctionerrors.ErrViewNotFound)

		require.ErrorIs(t, repo.TouchListingView(ctx, "bob", "missing", base), auctionerrors.ErrListingNotFound)

		require.NoError(t, repo.TouchListingView(ctx, "bob", "listing1", base))
		require.NoError(t, repo.TouchListingView(ctx, "bob", "listing1", base.Add(time.Minute)))

		view, err := repo.GetListingView(ctx, "bob", "listing1")
		require.NoError(t, err)
		require.True(t, base.Add(time.Minute).Equal(view.LastSeen))

		fresh, err := repo.HasActivitySince(ctx, "listing1", base)
		require.NoError(t, err)
		require.False(t, fresh)

		_, err = repo.RecordBid(ctx, "listing1", fixedBid("b1", "bob", "11", base.Add(time.Second)))
		require.NoError(t, err)

		fresh, err = repo.HasActivitySince(ctx, "listing1", base)
		require.NoError(t, err)
		require.True(t, fresh)

		// strictly after: activity at the marker itself is already seen
		fresh, err = repo.HasActivitySince(ctx, "listing1", base.Add(time.Second))
		require.NoError(t, err)
		require.False(t, fresh)

		require.NoError(t, repo.CreateComment(ctx, model.Comment{
			CommentID:   "c1",
			ListingID:   "listing1",
			CommenterID: "alice",
			Body:        "thanks",
			CreatedAt:   base.Add(2 * time.Second),
		}))
		fresh, err = repo.HasActivitySince(ctx, "listing1", base.Add(time.Second))
		require.NoError(t, err)
		require.True(t, fresh)
	})
}

func TestAuctionDB_Ping(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		require.NoError(t, repo.Ping(context.Background()))
	})
}
