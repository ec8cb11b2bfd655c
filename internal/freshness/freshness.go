// Package freshness works out whether an account has activity it has not
// seen yet. A listing is fresh for an account when a bid or comment landed
// after the account last opened the listing page, or when it never did.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/models"
)

// Store is the slice of the repository the tracker reads and writes
type Store interface {
	GetListingView(ctx context.Context, accountID, listingID string) (models.ListingView, error)
	TouchListingView(ctx context.Context, accountID, listingID string, at time.Time) error
	HasActivitySince(ctx context.Context, listingID string, since time.Time) (bool, error)
	ListWatchedListings(ctx context.Context, accountID string) ([]models.Listing, error)
	ListListingsByCreator(ctx context.Context, accountID string) ([]models.Listing, error)
}

type Tracker struct {
	store Store
	now   func() time.Time
}

func NewTracker(store Store) *Tracker {
	return &Tracker{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the tracker's time source
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// MarkSeen refreshes accountID's marker on listingID to now
func (t *Tracker) MarkSeen(ctx context.Context, accountID, listingID string) error {
	if err := t.store.TouchListingView(ctx, accountID, listingID, t.now()); err != nil {
		return fmt.Errorf("freshness: failed to mark listing %s seen: %w", listingID, err)
	}
	return nil
}

// HasUnseen reports whether listingID has a bid or comment newer than
// accountID's last visit. A listing never visited always has unseen activity.
func (t *Tracker) HasUnseen(ctx context.Context, accountID, listingID string) (bool, error) {
	view, err := t.store.GetListingView(ctx, accountID, listingID)
	if errors.Is(err, auctionerrors.ErrViewNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("freshness: failed to read marker for listing %s: %w", listingID, err)
	}

	fresh, err := t.store.HasActivitySince(ctx, listingID, view.LastSeen)
	if err != nil {
		return false, fmt.Errorf("freshness: failed to check activity on listing %s: %w", listingID, err)
	}
	return fresh, nil
}

// Annotate sets HasUpdates on every summary
func (t *Tracker) Annotate(ctx context.Context, accountID string, summaries []models.ListingSummary) error {
	for i := range summaries {
		fresh, err := t.HasUnseen(ctx, accountID, summaries[i].ListingID)
		if err != nil {
			return err
		}
		summaries[i].HasUpdates = fresh
	}
	return nil
}

// Counts returns how many watched and how many created listings have unseen activity
func (t *Tracker) Counts(ctx context.Context, accountID string) (models.NotificationCounts, error) {
	watched, err := t.store.ListWatchedListings(ctx, accountID)
	if err != nil {
		return models.NotificationCounts{}, fmt.Errorf("freshness: failed to list watchlist: %w", err)
	}
	watchedFresh, err := t.countUnseen(ctx, accountID, watched)
	if err != nil {
		return models.NotificationCounts{}, err
	}

	created, err := t.store.ListListingsByCreator(ctx, accountID)
	if err != nil {
		return models.NotificationCounts{}, fmt.Errorf("freshness: failed to list own listings: %w", err)
	}
	createdFresh, err := t.countUnseen(ctx, accountID, created)
	if err != nil {
		return models.NotificationCounts{}, err
	}

	return models.NotificationCounts{
		Watchlist:  watchedFresh,
		MyListings: createdFresh,
	}, nil
}

func (t *Tracker) countUnseen(ctx context.Context, accountID string, listings []models.Listing) (int, error) {
	n := 0
	for _, l := range listings {
		fresh, err := t.HasUnseen(ctx, accountID, l.ListingID)
		if err != nil {
			return 0, err
		}
		if fresh {
			n++
		}
	}
	return n, nil
}
