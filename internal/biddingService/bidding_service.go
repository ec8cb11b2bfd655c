package bidding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"auction-house/internal/auction"
	"auction-house/internal/auctionerrors"
	"auction-house/internal/freshness"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

const (
	maxTitleLength   = 64
	maxCommentLength = 2000
	maxImageURL      = 200

	OrderNewest = "newest"
	OrderOldest = "oldest"
)

// BiddingService defines the business logic for listings, bids, comments and watchlists
type BiddingService struct {
	repo       repository.AuctionDB
	tracker    *freshness.Tracker
	categories map[string]struct{}
	now        func() time.Time
}

// ListingInput is the user supplied part of a new listing
type ListingInput struct {
	Title       string
	Description string
	StartingBid string
	ImageURL    string
	Category    string
}

// NewBiddingService creates a new BiddingService instance. categories lists
// the values a listing's category may take.
func NewBiddingService(repo repository.AuctionDB, categories []string) *BiddingService {
	allowed := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}

	return &BiddingService{
		repo:       repo,
		tracker:    freshness.NewTracker(repo),
		categories: allowed,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for bids, comments and markers
func (s *BiddingService) WithClock(now func() time.Time) *BiddingService {
	s.now = now
	s.tracker.WithClock(now)
	return s
}

// CreateListing validates and stores a new active listing owned by actor
func (s *BiddingService) CreateListing(ctx context.Context, actor *models.Account, in ListingInput) (models.Listing, error) {
	if actor == nil {
		return models.Listing{}, fmt.Errorf("service: %w - you must be logged in to create a listing", auctionerrors.ErrUnauthenticated)
	}

	listing, err := s.validateListing(in)
	if err != nil {
		return models.Listing{}, err
	}

	now := s.now()
	listing.ListingID = utils.GenerateID()
	listing.CreatorID = actor.AccountID
	listing.Active = true
	listing.CreatedAt = now
	listing.LastUpdated = now

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return models.Listing{}, fmt.Errorf("service: failed to create listing for account %s: %w", actor.AccountID, err)
	}

	return listing, nil
}

// validateListing checks input validity for a new listing
func (s *BiddingService) validateListing(in ListingInput) (models.Listing, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Listing{}, fmt.Errorf("service: %w - title is required", auctionerrors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return models.Listing{}, fmt.Errorf("service: %w - title is longer than %d characters", auctionerrors.ErrInvalidInput, maxTitleLength)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return models.Listing{}, fmt.Errorf("service: %w - description is required", auctionerrors.ErrInvalidInput)
	}

	startingBid, err := auction.ParseStartingBid(in.StartingBid)
	if err != nil {
		return models.Listing{}, fmt.Errorf("service: %w", err)
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL != "" {
		if err := validateImageURL(imageURL); err != nil {
			return models.Listing{}, err
		}
	}

	category := strings.TrimSpace(in.Category)
	if category != "" {
		if _, ok := s.categories[category]; !ok {
			return models.Listing{}, fmt.Errorf("service: %w - unknown category %q", auctionerrors.ErrInvalidInput, category)
		}
	}

	return models.Listing{
		Title:       title,
		Description: description,
		StartingBid: startingBid,
		ImageURL:    imageURL,
		Category:    category,
	}, nil
}

func validateImageURL(raw string) error {
	if len(raw) > maxImageURL {
		return fmt.Errorf("service: %w - image url is longer than %d characters", auctionerrors.ErrInvalidInput, maxImageURL)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("service: %w - image url must be an absolute http(s) url", auctionerrors.ErrInvalidInput)
	}
	return nil
}

// ListActive returns all open listings with their current price, newest first
func (s *BiddingService) ListActive(ctx context.Context) ([]models.ListingSummary, error) {
	listings, err := s.repo.ListActiveListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list active listings: %w", err)
	}
	return s.summarize(ctx, listings)
}

// ListByCategory returns the open listings in category
func (s *BiddingService) ListByCategory(ctx context.Context, category string) ([]models.ListingSummary, error) {
	if category == "" {
		return nil, fmt.Errorf("service: %w - empty category", auctionerrors.ErrInvalidInput)
	}

	listings, err := s.repo.ListActiveByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list listings in category %s: %w", category, err)
	}
	return s.summarize(ctx, listings)
}

// Categories returns the distinct categories that have open listings
func (s *BiddingService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

// GetListingPage assembles a listing's detail page. Viewing the page as a
// signed-in account refreshes that account's freshness marker.
func (s *BiddingService) GetListingPage(ctx context.Context, actor *models.Account, listingID, order string) (models.ListingPage, error) {
	if listingID == "" {
		return models.ListingPage{}, fmt.Errorf("service: %w - empty listing ID", auctionerrors.ErrInvalidInput)
	}

	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return models.ListingPage{}, fmt.Errorf("service: failed to get listing %s: %w", listingID, err)
	}

	if actor != nil {
		if err := s.tracker.MarkSeen(ctx, actor.AccountID, listingID); err != nil {
			return models.ListingPage{}, fmt.Errorf("service: %w", err)
		}
	}

	bids, err := s.repo.GetBidsByListing(ctx, listingID)
	if err != nil {
		return models.ListingPage{}, fmt.Errorf("service: failed to get bids for listing %s: %w", listingID, err)
	}

	comments, err := s.repo.GetCommentsByListing(ctx, listingID, order == OrderOldest)
	if err != nil {
		return models.ListingPage{}, fmt.Errorf("service: failed to get comments for listing %s: %w", listingID, err)
	}

	page := models.ListingPage{
		ListingSummary: auction.Summarize(listing, auction.HighestBid(bids)),
		Bids:           bids,
		Comments:       comments,
	}

	if actor != nil {
		page.Watching, err = s.repo.IsWatching(ctx, actor.AccountID, listingID)
		if err != nil {
			return models.ListingPage{}, fmt.Errorf("service: failed to read watchlist for listing %s: %w", listingID, err)
		}
	}

	return page, nil
}

// PlaceBid validates and records actor's bid on a listing. The check against
// the current price and the insert happen in one critical section.
func (s *BiddingService) PlaceBid(ctx context.Context, actor *models.Account, listingID, rawAmount string) (models.Bid, error) {
	if listingID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty listing ID", auctionerrors.ErrInvalidInput)
	}

	bidderID := accountID(actor)
	amount, parseErr := auction.ParseAmount(rawAmount)

	bid, err := s.repo.RecordBid(ctx, listingID, func(listing models.Listing, highest *models.Bid) (models.Bid, error) {
		if err := auction.CheckBidder(listing, bidderID); err != nil {
			return models.Bid{}, err
		}
		if parseErr != nil {
			return models.Bid{}, parseErr
		}
		if err := auction.CheckAmount(listing, amount, highest); err != nil {
			return models.Bid{}, err
		}

		return models.Bid{
			BidID:     utils.GenerateID(),
			ListingID: listing.ListingID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: s.now(),
		}, nil
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to place bid on listing %s: %w", listingID, err)
	}

	return bid, nil
}

// GetBidsForListing returns all bids for a listing, highest first
func (s *BiddingService) GetBidsForListing(ctx context.Context, listingID string) ([]models.Bid, error) {
	if listingID == "" {
		return nil, fmt.Errorf("service: %w - empty listing ID", auctionerrors.ErrInvalidInput)
	}

	bids, err := s.repo.GetBidsByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for listing %s: %w", listingID, err)
	}

	return bids, nil
}

// AddComment stores actor's comment on a listing. Closed listings still take comments.
func (s *BiddingService) AddComment(ctx context.Context, actor *models.Account, listingID, body string) (models.Comment, error) {
	if actor == nil {
		return models.Comment{}, fmt.Errorf("service: %w - you must be logged in to comment", auctionerrors.ErrUnauthenticated)
	}
	if listingID == "" {
		return models.Comment{}, fmt.Errorf("service: %w - empty listing ID", auctionerrors.ErrInvalidInput)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return models.Comment{}, fmt.Errorf("service: %w - comment is empty", auctionerrors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return models.Comment{}, fmt.Errorf("service: %w - comment is longer than %d characters", auctionerrors.ErrInvalidInput, maxCommentLength)
	}

	comment := models.Comment{
		CommentID:   utils.GenerateID(),
		ListingID:   listingID,
		CommenterID: actor.AccountID,
		Body:        body,
		CreatedAt:   s.now(),
	}

	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return models.Comment{}, fmt.Errorf("service: failed to add comment to listing %s: %w", listingID, err)
	}

	return comment, nil
}

// CloseAuction closes an active listing on behalf of its creator and assigns
// the highest bidder as winner. The result carries the final price.
func (s *BiddingService) CloseAuction(ctx context.Context, actor *models.Account, listingID string) (models.ListingSummary, error) {
	if listingID == "" {
		return models.ListingSummary{}, fmt.Errorf("service: %w - empty listing ID", auctionerrors.ErrInvalidInput)
	}

	actorID := accountID(actor)
	var highest *models.Bid
	listing, err := s.repo.CloseListing(ctx, listingID, func(listing models.Listing, bids []models.Bid) (models.Listing, error) {
		if err := auction.CheckClose(listing, actorID); err != nil {
			return models.Listing{}, err
		}
		highest = auction.HighestBid(bids)
		closed := auction.Close(listing, bids)
		closed.LastUpdated = s.now()
		return closed, nil
	})
	if err != nil {
		return models.ListingSummary{}, fmt.Errorf("service: failed to close listing %s: %w", listingID, err)
	}

	return auction.Summarize(listing, highest), nil
}

// ToggleWatchlist adds the listing to actor's watchlist, or removes it when
// already present, and reports whether it is now watched.
func (s *BiddingService) ToggleWatchlist(ctx context.Context, actor *models.Account, listingID string) (bool, error) {
	if actor == nil {
		return false, fmt.Errorf("service: %w - you must be logged in", auctionerrors.ErrUnauthenticated)
	}
	if listingID == "" {
		return false, fmt.Errorf("service: %w - empty listing ID", auctionerrors.ErrInvalidInput)
	}

	watching, err := s.repo.ToggleWatchlist(ctx, actor.AccountID, listingID, s.now())
	if err != nil {
		return false, fmt.Errorf("service: failed to toggle watchlist for listing %s: %w", listingID, err)
	}

	return watching, nil
}

// Watchlist returns actor's watched listings, open ones first, flagged with unseen activity
func (s *BiddingService) Watchlist(ctx context.Context, actor *models.Account) ([]models.ListingSummary, error) {
	if actor == nil {
		return nil, fmt.Errorf("service: %w - you must be logged in", auctionerrors.ErrUnauthenticated)
	}

	listings, err := s.repo.ListWatchedListings(ctx, actor.AccountID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get watchlist for account %s: %w", actor.AccountID, err)
	}
	return s.summarizeForAccount(ctx, actor.AccountID, listings)
}

// MyListings returns the listings actor created, open ones first, flagged with unseen activity
func (s *BiddingService) MyListings(ctx context.Context, actor *models.Account) ([]models.ListingSummary, error) {
	if actor == nil {
		return nil, fmt.Errorf("service: %w - you must be logged in", auctionerrors.ErrUnauthenticated)
	}

	listings, err := s.repo.ListListingsByCreator(ctx, actor.AccountID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get listings of account %s: %w", actor.AccountID, err)
	}
	return s.summarizeForAccount(ctx, actor.AccountID, listings)
}

// Notifications returns actor's badge counts; anonymous visitors get zeros
func (s *BiddingService) Notifications(ctx context.Context, actor *models.Account) (models.NotificationCounts, error) {
	if actor == nil {
		return models.NotificationCounts{}, nil
	}

	counts, err := s.tracker.Counts(ctx, actor.AccountID)
	if err != nil {
		return models.NotificationCounts{}, fmt.Errorf("service: %w", err)
	}
	return counts, nil
}

func (s *BiddingService) summarizeForAccount(ctx context.Context, accountID string, listings []models.Listing) ([]models.ListingSummary, error) {
	summaries, err := s.summarize(ctx, listings)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.Annotate(ctx, accountID, summaries); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return summaries, nil
}

func (s *BiddingService) summarize(ctx context.Context, listings []models.Listing) ([]models.ListingSummary, error) {
	summaries := make([]models.ListingSummary, 0, len(listings))
	for _, l := range listings {
		var highest *models.Bid
		bid, err := s.repo.GetHighestBid(ctx, l.ListingID)
		switch {
		case err == nil:
			highest = &bid
		case !errors.Is(err, auctionerrors.ErrNoBids):
			return nil, fmt.Errorf("service: failed to get highest bid for listing %s: %w", l.ListingID, err)
		}
		summaries = append(summaries, auction.Summarize(l, highest))
	}
	return summaries, nil
}

func accountID(actor *models.Account) string {
	if actor == nil {
		return ""
	}
	return actor.AccountID
}
