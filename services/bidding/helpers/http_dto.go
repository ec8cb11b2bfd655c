package helpers

import (
	"time"

	"auction-house/internal/auction"
	model "auction-house/internal/models"
)

// Request/Response DTOs
type CreateListingRequest struct {
	Title       string `json:"title" form:"title" binding:"required,max=64"`
	Description string `json:"description" form:"description" binding:"required"`
	StartingBid string `json:"starting_bid" form:"starting_bid" binding:"required"`
	ImageURL    string `json:"image_url" form:"image_url" binding:"omitempty,url,max=200"`
	Category    string `json:"category" form:"category" binding:"max=64"`
}

type PlaceBidRequest struct {
	Amount string `json:"amount" form:"amount" binding:"required"`
}

type CommentRequest struct {
	Body string `json:"body" form:"body" binding:"required"`
}

type RegisterRequest struct {
	Username     string `json:"username" form:"username" binding:"required,max=150"`
	Email        string `json:"email" form:"email" binding:"omitempty,email"`
	FirstName    string `json:"first_name" form:"first_name"`
	LastName     string `json:"last_name" form:"last_name"`
	Password     string `json:"password" form:"password" binding:"required"`
	Confirmation string `json:"confirmation" form:"confirmation" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	ListingID string `json:"listing_id"`
	BidderID  string `json:"bidder_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type CommentResponse struct {
	CommentID   string `json:"comment_id"`
	ListingID   string `json:"listing_id"`
	CommenterID string `json:"commenter_id"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
}

type ListingResponse struct {
	ListingID    string  `json:"listing_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	StartingBid  string  `json:"starting_bid"`
	CurrentPrice string  `json:"current_price"`
	ImageURL     string  `json:"image_url,omitempty"`
	Category     string  `json:"category,omitempty"`
	CreatorID    string  `json:"creator_id"`
	Active       bool    `json:"active"`
	WinnerID     *string `json:"winner_id,omitempty"`
	LastBidderID *string `json:"last_bidder_id,omitempty"`
	HasUpdates   bool    `json:"has_updates"`
	CreatedAt    string  `json:"created_at"`
	LastUpdated  string  `json:"last_updated"`
}

type ListingPageResponse struct {
	ListingResponse
	Bids     []BidResponse     `json:"bids"`
	Comments []CommentResponse `json:"comments"`
	Watching bool              `json:"watching"`
}

type WatchlistResponse struct {
	ListingID string `json:"listing_id"`
	Watching  bool   `json:"watching"`
}

type AccountResponse struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type SessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount.StringFixed(auction.AmountPlaces),
		CreatedAt: formatTime(bid.CreatedAt),
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	resp := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, NewBidResponse(b))
	}
	return resp
}

func NewCommentResponse(comment model.Comment) CommentResponse {
	return CommentResponse{
		CommentID:   comment.CommentID,
		ListingID:   comment.ListingID,
		CommenterID: comment.CommenterID,
		Body:        comment.Body,
		CreatedAt:   formatTime(comment.CreatedAt),
	}
}

// NewListingResponse renders a bare listing; its current price is the starting bid
func NewListingResponse(listing model.Listing) ListingResponse {
	return NewSummaryResponse(auction.Summarize(listing, nil))
}

func NewSummaryResponse(s model.ListingSummary) ListingResponse {
	return ListingResponse{
		ListingID:    s.ListingID,
		Title:        s.Title,
		Description:  s.Description,
		StartingBid:  s.StartingBid.StringFixed(auction.AmountPlaces),
		CurrentPrice: s.CurrentPrice.StringFixed(auction.AmountPlaces),
		ImageURL:     s.ImageURL,
		Category:     s.Category,
		CreatorID:    s.CreatorID,
		Active:       s.Active,
		WinnerID:     s.WinnerID,
		LastBidderID: s.LastBidderID,
		HasUpdates:   s.HasUpdates,
		CreatedAt:    formatTime(s.CreatedAt),
		LastUpdated:  formatTime(s.LastUpdated),
	}
}

func NewSummaryResponses(summaries []model.ListingSummary) []ListingResponse {
	resp := make([]ListingResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, NewSummaryResponse(s))
	}
	return resp
}

func NewListingPageResponse(page model.ListingPage) ListingPageResponse {
	comments := make([]CommentResponse, 0, len(page.Comments))
	for _, c := range page.Comments {
		comments = append(comments, NewCommentResponse(c))
	}

	return ListingPageResponse{
		ListingResponse: NewSummaryResponse(page.ListingSummary),
		Bids:            NewBidResponses(page.Bids),
		Comments:        comments,
		Watching:        page.Watching,
	}
}

func NewAccountResponse(account model.Account) AccountResponse {
	return AccountResponse{
		AccountID: account.AccountID,
		Username:  account.Username,
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}
}

func NewSessionResponse(account model.Account, session model.Session) SessionResponse {
	return SessionResponse{
		Token:     session.Token,
		ExpiresAt: formatTime(session.ExpiresAt),
		Account:   NewAccountResponse(account),
	}
}
