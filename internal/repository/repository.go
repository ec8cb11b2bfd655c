package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-house/internal/auction"
	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
)

// BidFunc decides, against the listing and its current highest bid (nil when
// unbid), which bid to record. It runs inside the listing's critical section;
// returning an error records nothing.
type BidFunc func(listing model.Listing, highest *model.Bid) (model.Bid, error)

// CloseFunc returns the closed form of listing given all of its bids. Active,
// WinnerID and LastUpdated of the result are persisted. It runs inside the
// listing's critical section; returning an error changes nothing.
type CloseFunc func(listing model.Listing, bids []model.Bid) (model.Listing, error)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB defines the storage interface for the auction system
type AuctionDB interface {
	CreateAccount(ctx context.Context, account model.Account) error
	GetAccount(ctx context.Context, accountID string) (model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (model.Account, error)
	CreateSession(ctx context.Context, session model.Session) error
	GetSession(ctx context.Context, token string) (model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	CreateListing(ctx context.Context, listing model.Listing) error
	GetListing(ctx context.Context, listingID string) (model.Listing, error)
	ListActiveListings(ctx context.Context) ([]model.Listing, error)
	ListActiveByCategory(ctx context.Context, category string) ([]model.Listing, error)
	ListActiveCategories(ctx context.Context) ([]string, error)
	ListListingsByCreator(ctx context.Context, accountID string) ([]model.Listing, error)
	ListWatchedListings(ctx context.Context, accountID string) ([]model.Listing, error)

	GetBidsByListing(ctx context.Context, listingID string) ([]model.Bid, error)
	GetHighestBid(ctx context.Context, listingID string) (model.Bid, error)
	RecordBid(ctx context.Context, listingID string, build BidFunc) (model.Bid, error)
	CloseListing(ctx context.Context, listingID string, closeFn CloseFunc) (model.Listing, error)

	CreateComment(ctx context.Context, comment model.Comment) error
	GetCommentsByListing(ctx context.Context, listingID string, oldestFirst bool) ([]model.Comment, error)

	ToggleWatchlist(ctx context.Context, accountID, listingID string, at time.Time) (bool, error)
	IsWatching(ctx context.Context, accountID, listingID string) (bool, error)

	TouchListingView(ctx context.Context, accountID, listingID string, at time.Time) error
	GetListingView(ctx context.Context, accountID, listingID string) (model.ListingView, error)
	HasActivitySince(ctx context.Context, listingID string, since time.Time) (bool, error)

	Ping(ctx context.Context) error
}

type pairKey struct {
	accountID string
	listingID string
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// A single write lock covers every read-validate-write sequence, so bids and
// closes on a listing are fully serialized.
type MemoryRepo struct {
	mu        sync.RWMutex
	accounts  map[string]model.Account   // key: accountID
	usernames map[string]string          // key: username -> accountID
	sessions  map[string]model.Session   // key: token
	listings  map[string]model.Listing   // key: listingID
	bids      map[string][]model.Bid     // key: listingID -> bids in insertion order
	comments  map[string][]model.Comment // key: listingID -> comments in insertion order
	views     map[pairKey]model.ListingView
	watchlist map[pairKey]time.Time
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		accounts:  make(map[string]model.Account),
		usernames: make(map[string]string),
		sessions:  make(map[string]model.Session),
		listings:  make(map[string]model.Listing),
		bids:      make(map[string][]model.Bid),
		comments:  make(map[string][]model.Comment),
		views:     make(map[pairKey]model.ListingView),
		watchlist: make(map[pairKey]time.Time),
	}
}

// CreateAccount stores a new account; usernames are unique
func (r *MemoryRepo) CreateAccount(_ context.Context, account model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.usernames[account.Username]; taken {
		return fmt.Errorf("create account %s: %w", account.Username, auctionerrors.ErrUsernameTaken)
	}
	r.accounts[account.AccountID] = account
	r.usernames[account.Username] = account.AccountID
	return nil
}

// GetAccount returns an account by id
func (r *MemoryRepo) GetAccount(_ context.Context, accountID string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return model.Account{}, fmt.Errorf("get account %s: %w", accountID, auctionerrors.ErrAccountNotFound)
	}
	return account, nil
}

// GetAccountByUsername returns an account by its username
func (r *MemoryRepo) GetAccountByUsername(_ context.Context, username string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accountID, ok := r.usernames[username]
	if !ok {
		return model.Account{}, fmt.Errorf("get account %s: %w", username, auctionerrors.ErrAccountNotFound)
	}
	return r.accounts[accountID], nil
}

func (r *MemoryRepo) CreateSession(_ context.Context, session model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[session.AccountID]; !ok {
		return fmt.Errorf("create session: %w", auctionerrors.ErrAccountNotFound)
	}
	r.sessions[session.Token] = session
	return nil
}

func (r *MemoryRepo) GetSession(_ context.Context, token string) (model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return model.Session{}, fmt.Errorf("get session: %w", auctionerrors.ErrSessionNotFound)
	}
	return session, nil
}

func (r *MemoryRepo) DeleteSession(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// CreateListing stores a new listing
func (r *MemoryRepo) CreateListing(_ context.Context, listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[listing.CreatorID]; !ok {
		return fmt.Errorf("create listing %s: %w", listing.ListingID, auctionerrors.ErrAccountNotFound)
	}
	r.listings[listing.ListingID] = listing
	return nil
}

// GetListing returns a listing by id
func (r *MemoryRepo) GetListing(_ context.Context, listingID string) (model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}
	return listing, nil
}

// ListActiveListings returns open listings, newest first
func (r *MemoryRepo) ListActiveListings(_ context.Context) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filterListings(func(l model.Listing) bool { return l.Active }, byNewest), nil
}

// ListActiveByCategory returns open listings in category, newest first
func (r *MemoryRepo) ListActiveByCategory(_ context.Context, category string) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filterListings(func(l model.Listing) bool {
		return l.Active && l.Category == category
	}, byNewest), nil
}

// ListActiveCategories returns the distinct non-empty categories of open listings
func (r *MemoryRepo) ListActiveCategories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	categories := []string{}
	for _, l := range r.listings {
		if !l.Active || l.Category == "" {
			continue
		}
		if _, dup := seen[l.Category]; dup {
			continue
		}
		seen[l.Category] = struct{}{}
		categories = append(categories, l.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// ListListingsByCreator returns the listings accountID created, open ones first
func (r *MemoryRepo) ListListingsByCreator(_ context.Context, accountID string) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filterListings(func(l model.Listing) bool { return l.CreatorID == accountID }, byActiveThenUpdated), nil
}

// ListWatchedListings returns the listings on accountID's watchlist, open ones first
func (r *MemoryRepo) ListWatchedListings(_ context.Context, accountID string) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filterListings(func(l model.Listing) bool {
		_, ok := r.watchlist[pairKey{accountID: accountID, listingID: l.ListingID}]
		return ok
	}, byActiveThenUpdated), nil
}

// GetBidsByListing returns all bids for a listing, highest first
func (r *MemoryRepo) GetBidsByListing(_ context.Context, listingID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.listings[listingID]; !ok {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}

	bids := append([]model.Bid{}, r.bids[listingID]...)
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].Amount.Equal(bids[j].Amount) {
			return bids[i].Amount.GreaterThan(bids[j].Amount)
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids, nil
}

// GetHighestBid returns the highest bid for a listing
func (r *MemoryRepo) GetHighestBid(_ context.Context, listingID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	highest := r.highestBid(listingID)
	if highest == nil {
		return model.Bid{}, fmt.Errorf("get highest bid for listing %s: %w", listingID, auctionerrors.ErrNoBids)
	}
	return *highest, nil
}

// RecordBid validates and stores a bid while holding the write lock
func (r *MemoryRepo) RecordBid(_ context.Context, listingID string, build BidFunc) (model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Bid{}, fmt.Errorf("record bid for listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}

	bid, err := build(listing, r.highestBid(listingID))
	if err != nil {
		return model.Bid{}, err
	}

	bid.ListingID = listingID
	r.bids[listingID] = append(r.bids[listingID], bid)
	listing.LastUpdated = bid.CreatedAt
	r.listings[listingID] = listing
	return bid, nil
}

// CloseListing applies closeFn to the listing and its bids while holding the write lock
func (r *MemoryRepo) CloseListing(_ context.Context, listingID string, closeFn CloseFunc) (model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("close listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}

	closed, err := closeFn(listing, append([]model.Bid(nil), r.bids[listingID]...))
	if err != nil {
		return model.Listing{}, err
	}

	listing.Active = closed.Active
	listing.WinnerID = closed.WinnerID
	listing.LastUpdated = closed.LastUpdated
	r.listings[listingID] = listing
	return listing, nil
}

// CreateComment stores a comment on an existing listing
func (r *MemoryRepo) CreateComment(_ context.Context, comment model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[comment.ListingID]
	if !ok {
		return fmt.Errorf("create comment on listing %s: %w", comment.ListingID, auctionerrors.ErrListingNotFound)
	}

	r.comments[comment.ListingID] = append(r.comments[comment.ListingID], comment)
	listing.LastUpdated = comment.CreatedAt
	r.listings[comment.ListingID] = listing
	return nil
}

// GetCommentsByListing returns a listing's comments, newest first unless oldestFirst
func (r *MemoryRepo) GetCommentsByListing(_ context.Context, listingID string, oldestFirst bool) ([]model.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comments := append([]model.Comment{}, r.comments[listingID]...)
	sort.SliceStable(comments, func(i, j int) bool {
		if oldestFirst {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

// ToggleWatchlist flips watchlist membership and reports the new state
func (r *MemoryRepo) ToggleWatchlist(_ context.Context, accountID, listingID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[listingID]; !ok {
		return false, fmt.Errorf("toggle watchlist for listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}

	key := pairKey{accountID: accountID, listingID: listingID}
	if _, watching := r.watchlist[key]; watching {
		delete(r.watchlist, key)
		return false, nil
	}
	r.watchlist[key] = at
	return true, nil
}

func (r *MemoryRepo) IsWatching(_ context.Context, accountID, listingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.watchlist[pairKey{accountID: accountID, listingID: listingID}]
	return ok, nil
}

// TouchListingView creates or refreshes the freshness marker
func (r *MemoryRepo) TouchListingView(_ context.Context, accountID, listingID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[listingID]; !ok {
		return fmt.Errorf("touch view of listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}
	r.views[pairKey{accountID: accountID, listingID: listingID}] = model.ListingView{
		AccountID: accountID,
		ListingID: listingID,
		LastSeen:  at,
	}
	return nil
}

func (r *MemoryRepo) GetListingView(_ context.Context, accountID, listingID string) (model.ListingView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	view, ok := r.views[pairKey{accountID: accountID, listingID: listingID}]
	if !ok {
		return model.ListingView{}, fmt.Errorf("get view of listing %s: %w", listingID, auctionerrors.ErrViewNotFound)
	}
	return view, nil
}

// HasActivitySince reports whether a bid or comment landed strictly after since
func (r *MemoryRepo) HasActivitySince(_ context.Context, listingID string, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bids[listingID] {
		if b.CreatedAt.After(since) {
			return true, nil
		}
	}
	for _, c := range r.comments[listingID] {
		if c.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) Ping(context.Context) error {
	return nil
}

// highestBid must be called with r.mu held
func (r *MemoryRepo) highestBid(listingID string) *model.Bid {
	return auction.HighestBid(r.bids[listingID])
}

// filterListings must be called with r.mu held
func (r *MemoryRepo) filterListings(keep func(model.Listing) bool, less func(a, b model.Listing) bool) []model.Listing {
	listings := []model.Listing{}
	for _, l := range r.listings {
		if keep(l) {
			listings = append(listings, l)
		}
	}
	sort.SliceStable(listings, func(i, j int) bool { return less(listings[i], listings[j]) })
	return listings
}

func byNewest(a, b model.Listing) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ListingID < b.ListingID
}

func byActiveThenUpdated(a, b model.Listing) bool {
	if a.Active != b.Active {
		return a.Active
	}
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return a.LastUpdated.After(b.LastUpdated)
	}
	return a.ListingID < b.ListingID
}
