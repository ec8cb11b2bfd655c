// Package auction holds the listing lifecycle rules: how the current price is
// derived, when a bid is admissible, and who wins when the creator closes.
// Nothing here touches storage; callers run these checks inside the
// per-listing critical section provided by the repository.
package auction

import (
	"fmt"
	"strings"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// AmountPlaces is the number of decimal places kept for money.
	AmountPlaces = 2
	// MaxDigits is the total number of significant digits a stored amount may hold.
	MaxDigits = 10
)

// CurrentPrice returns the highest bid amount, or the starting bid when the
// listing has no bids.
func CurrentPrice(listing models.Listing, highest *models.Bid) decimal.Decimal {
	if highest == nil {
		return listing.StartingBid
	}
	return highest.Amount
}

// ParseAmount parses a user supplied bid amount. The result is positive and
// rounded to AmountPlaces.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := parseMoney(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w - bid amount must be positive", auctionerrors.ErrInvalidInput)
	}
	return amount, nil
}

// ParseStartingBid parses a listing's starting bid, which may be zero.
func ParseStartingBid(raw string) (decimal.Decimal, error) {
	amount, err := parseMoney(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w - starting bid must not be negative", auctionerrors.ErrInvalidInput)
	}
	return amount, nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w - amount is required", auctionerrors.ErrInvalidInput)
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w - %q is not a valid amount", auctionerrors.ErrInvalidInput, raw)
	}

	amount = amount.Round(AmountPlaces)
	limit := decimal.New(1, MaxDigits-AmountPlaces)
	if amount.Abs().GreaterThanOrEqual(limit) {
		return decimal.Zero, fmt.Errorf("%w - amount must be below %s", auctionerrors.ErrInvalidInput, limit.String())
	}
	return amount, nil
}

// CheckBid reports whether bidderID may bid amount on listing given the
// current highest bid. Rules are applied in a fixed order and the first
// failing one is returned.
func CheckBid(listing models.Listing, bidderID string, amount decimal.Decimal, highest *models.Bid) error {
	if err := CheckBidder(listing, bidderID); err != nil {
		return err
	}
	return CheckAmount(listing, amount, highest)
}

// CheckBidder checks the bidder side of a bid: signed in, auction open, not
// the creator.
func CheckBidder(listing models.Listing, bidderID string) error {
	if bidderID == "" {
		return fmt.Errorf("%w - you must be logged in to bid", auctionerrors.ErrUnauthenticated)
	}
	if !listing.Active {
		return fmt.Errorf("%w - this auction is closed", auctionerrors.ErrAuctionClosed)
	}
	if bidderID == listing.CreatorID {
		return fmt.Errorf("%w - you cannot bid on your own listing", auctionerrors.ErrForbidden)
	}
	return nil
}

// CheckAmount checks amount against the starting bid and the highest bid.
func CheckAmount(listing models.Listing, amount decimal.Decimal, highest *models.Bid) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w - bid amount must be positive", auctionerrors.ErrInvalidInput)
	}
	if amount.LessThan(listing.StartingBid) {
		return fmt.Errorf("%w - bid must be at least the starting bid of %s",
			auctionerrors.ErrBidTooLow, listing.StartingBid.StringFixed(AmountPlaces))
	}
	// The starting bid is a floor, not a bid: the first bid may equal it.
	if highest != nil && amount.LessThanOrEqual(highest.Amount) {
		return fmt.Errorf("%w - bid must be higher than the current bid of %s",
			auctionerrors.ErrBidTooLow, highest.Amount.StringFixed(AmountPlaces))
	}
	return nil
}

// HighestBid picks the bid with the largest amount. Equal amounts go to the
// earliest bid. It returns nil when bids is empty.
func HighestBid(bids []models.Bid) *models.Bid {
	if len(bids) == 0 {
		return nil
	}

	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(winning.Amount) ||
			(b.Amount.Equal(winning.Amount) && b.CreatedAt.Before(winning.CreatedAt)) {
			winning = b
		}
	}
	return &winning
}

// CheckClose reports whether actorID may close listing.
func CheckClose(listing models.Listing, actorID string) error {
	if actorID == "" {
		return fmt.Errorf("%w - you must be logged in to close an auction", auctionerrors.ErrUnauthenticated)
	}
	if actorID != listing.CreatorID {
		return fmt.Errorf("%w - you are not allowed to close this auction", auctionerrors.ErrForbidden)
	}
	if !listing.Active {
		return fmt.Errorf("%w - auction already closed", auctionerrors.ErrAuctionClosed)
	}
	return nil
}

// Close moves listing to the closed state and assigns the winner from bids.
// The returned listing has no winner when bids is empty.
func Close(listing models.Listing, bids []models.Bid) models.Listing {
	listing.Active = false
	listing.WinnerID = nil
	if winning := HighestBid(bids); winning != nil {
		winnerID := winning.BidderID
		listing.WinnerID = &winnerID
	}
	return listing
}

// Summarize decorates listing with its derived price and last bidder.
func Summarize(listing models.Listing, highest *models.Bid) models.ListingSummary {
	summary := models.ListingSummary{
		Listing:      listing,
		CurrentPrice: CurrentPrice(listing, highest),
	}
	if highest != nil {
		bidderID := highest.BidderID
		summary.LastBidderID = &bidderID
	}
	return summary
}
