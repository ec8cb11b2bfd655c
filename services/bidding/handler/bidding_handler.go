package handler

import (
	"context"
	"net/http"

	bidding "auction-house/internal/biddingService"
	model "auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

type BiddingServiceInterface interface {
	CreateListing(ctx context.Context, actor *model.Account, in bidding.ListingInput) (model.Listing, error)
	ListActive(ctx context.Context) ([]model.ListingSummary, error)
	ListByCategory(ctx context.Context, category string) ([]model.ListingSummary, error)
	Categories(ctx context.Context) ([]string, error)
	GetListingPage(ctx context.Context, actor *model.Account, listingID, order string) (model.ListingPage, error)
	PlaceBid(ctx context.Context, actor *model.Account, listingID, rawAmount string) (model.Bid, error)
	GetBidsForListing(ctx context.Context, listingID string) ([]model.Bid, error)
	AddComment(ctx context.Context, actor *model.Account, listingID, body string) (model.Comment, error)
	CloseAuction(ctx context.Context, actor *model.Account, listingID string) (model.ListingSummary, error)
	ToggleWatchlist(ctx context.Context, actor *model.Account, listingID string) (bool, error)
	Watchlist(ctx context.Context, actor *model.Account) ([]model.ListingSummary, error)
	MyListings(ctx context.Context, actor *model.Account) ([]model.ListingSummary, error)
	Notifications(ctx context.Context, actor *model.Account) (model.NotificationCounts, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// ListActiveHandler handles GET /listings
func (h *BiddingHandler) ListActiveHandler(c *gin.Context) {
	summaries, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "ListActiveHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewSummaryResponses(summaries), "listings retrieved successfully")
	helpers.LogSuccess("ListActiveHandler", "listings retrieved successfully", map[string]any{
		"count": len(summaries),
	})
}

// CreateListingHandler handles POST /listings
func (h *BiddingHandler) CreateListingHandler(c *gin.Context) {
	var req helpers.CreateListingRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "CreateListingHandler", err)
		return
	}

	actor := helpers.CurrentAccount(c)
	listing, err := h.service.CreateListing(c.Request.Context(), actor, bidding.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		StartingBid: req.StartingBid,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
	})
	if err != nil {
		helpers.HandleServiceError(c, "CreateListingHandler", err, map[string]any{
			"account_id": helpers.AccountIDOf(actor),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewListingResponse(listing), "listing created successfully")
	helpers.LogSuccess("CreateListingHandler", "listing created successfully", map[string]any{
		"listing_id": listing.ListingID,
		"account_id": listing.CreatorID,
	})
}

// GetListingHandler handles GET /listings/:listing_id
func (h *BiddingHandler) GetListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	actor := helpers.CurrentAccount(c)

	page, err := h.service.GetListingPage(c.Request.Context(), actor, listingID, c.DefaultQuery("order", bidding.OrderNewest))
	if err != nil {
		helpers.HandleServiceError(c, "GetListingHandler", err, map[string]any{"listing_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewListingPageResponse(page), "listing retrieved successfully")
	helpers.LogSuccess("GetListingHandler", "listing retrieved successfully", map[string]any{
		"listing_id": listingID,
		"account_id": helpers.AccountIDOf(actor),
	})
}

// GetBidsByListingHandler handles GET /listings/:listing_id/bids
func (h *BiddingHandler) GetBidsByListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	bids, err := h.service.GetBidsForListing(c.Request.Context(), listingID)
	if err != nil {
		helpers.HandleServiceError(c, "GetBidsByListingHandler", err, map[string]any{"listing_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByListingHandler", "bids retrieved successfully", map[string]any{
		"listing_id": listingID,
		"count":      len(bids),
	})
}

// PlaceBidHandler handles POST /listings/:listing_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	listingID := c.Param("listing_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	actor := helpers.CurrentAccount(c)
	bid, err := h.service.PlaceBid(c.Request.Context(), actor, listingID, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "PlaceBidHandler", err, map[string]any{
			"listing_id": listingID,
			"account_id": helpers.AccountIDOf(actor),
			"amount":     req.Amount,
		})
		return
	}

	resp := helpers.NewBidResponse(bid)
	utils.JSONResponse(c, http.StatusCreated, resp, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"listing_id": bid.ListingID,
		"account_id": bid.BidderID,
		"amount":     resp.Amount,
	})
}

// AddCommentHandler handles POST /listings/:listing_id/comments
func (h *BiddingHandler) AddCommentHandler(c *gin.Context) {
	listingID := c.Param("listing_id")

	var req helpers.CommentRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "AddCommentHandler", err)
		return
	}

	actor := helpers.CurrentAccount(c)
	comment, err := h.service.AddComment(c.Request.Context(), actor, listingID, req.Body)
	if err != nil {
		helpers.HandleServiceError(c, "AddCommentHandler", err, map[string]any{
			"listing_id": listingID,
			"account_id": helpers.AccountIDOf(actor),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewCommentResponse(comment), "comment added successfully")
	helpers.LogSuccess("AddCommentHandler", "comment added successfully", map[string]any{
		"comment_id": comment.CommentID,
		"listing_id": listingID,
		"account_id": comment.CommenterID,
	})
}

// CloseAuctionHandler handles POST /listings/:listing_id/close
func (h *BiddingHandler) CloseAuctionHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	actor := helpers.CurrentAccount(c)

	summary, err := h.service.CloseAuction(c.Request.Context(), actor, listingID)
	if err != nil {
		helpers.HandleServiceError(c, "CloseAuctionHandler", err, map[string]any{
			"listing_id": listingID,
			"account_id": helpers.AccountIDOf(actor),
		})
		return
	}

	resp := helpers.NewSummaryResponse(summary)
	utils.JSONResponse(c, http.StatusOK, resp, "auction closed successfully")

	fields := map[string]any{
		"listing_id":  listingID,
		"account_id":  helpers.AccountIDOf(actor),
		"final_price": resp.CurrentPrice,
	}
	if summary.WinnerID != nil {
		fields["winner_id"] = *summary.WinnerID
	}
	helpers.LogSuccess("CloseAuctionHandler", "auction closed successfully", fields)
}

// ToggleWatchlistHandler handles POST /listings/:listing_id/watchlist
func (h *BiddingHandler) ToggleWatchlistHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	actor := helpers.CurrentAccount(c)

	watching, err := h.service.ToggleWatchlist(c.Request.Context(), actor, listingID)
	if err != nil {
		helpers.HandleServiceError(c, "ToggleWatchlistHandler", err, map[string]any{
			"listing_id": listingID,
			"account_id": helpers.AccountIDOf(actor),
		})
		return
	}

	message := "removed from watchlist"
	if watching {
		message = "added to watchlist"
	}

	utils.JSONResponse(c, http.StatusOK, helpers.WatchlistResponse{ListingID: listingID, Watching: watching}, message)
	helpers.LogSuccess("ToggleWatchlistHandler", message, map[string]any{
		"listing_id": listingID,
		"account_id": helpers.AccountIDOf(actor),
	})
}

// WatchlistHandler handles GET /watchlist
func (h *BiddingHandler) WatchlistHandler(c *gin.Context) {
	actor := helpers.CurrentAccount(c)
	summaries, err := h.service.Watchlist(c.Request.Context(), actor)
	if err != nil {
		helpers.HandleServiceError(c, "WatchlistHandler", err, map[string]any{"account_id": helpers.AccountIDOf(actor)})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewSummaryResponses(summaries), "watchlist retrieved successfully")
	helpers.LogSuccess("WatchlistHandler", "watchlist retrieved successfully", map[string]any{
		"account_id": helpers.AccountIDOf(actor),
		"count":      len(summaries),
	})
}

// MyListingsHandler handles GET /my-listings
func (h *BiddingHandler) MyListingsHandler(c *gin.Context) {
	actor := helpers.CurrentAccount(c)
	summaries, err := h.service.MyListings(c.Request.Context(), actor)
	if err != nil {
		helpers.HandleServiceError(c, "MyListingsHandler", err, map[string]any{"account_id": helpers.AccountIDOf(actor)})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewSummaryResponses(summaries), "listings retrieved successfully")
	helpers.LogSuccess("MyListingsHandler", "listings retrieved successfully", map[string]any{
		"account_id": helpers.AccountIDOf(actor),
		"count":      len(summaries),
	})
}

// NotificationsHandler handles GET /notifications
func (h *BiddingHandler) NotificationsHandler(c *gin.Context) {
	actor := helpers.CurrentAccount(c)
	counts, err := h.service.Notifications(c.Request.Context(), actor)
	if err != nil {
		helpers.HandleServiceError(c, "NotificationsHandler", err, map[string]any{"account_id": helpers.AccountIDOf(actor)})
		return
	}

	utils.JSONResponse(c, http.StatusOK, counts, "notifications retrieved successfully")
}

// CategoriesHandler handles GET /categories
func (h *BiddingHandler) CategoriesHandler(c *gin.Context) {
	categories, err := h.service.Categories(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "CategoriesHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, categories, "categories retrieved successfully")
}

// CategoryListingsHandler handles GET /categories/:category_name
func (h *BiddingHandler) CategoryListingsHandler(c *gin.Context) {
	category := c.Param("category_name")
	summaries, err := h.service.ListByCategory(c.Request.Context(), category)
	if err != nil {
		helpers.HandleServiceError(c, "CategoryListingsHandler", err, map[string]any{"category": category})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewSummaryResponses(summaries), "listings retrieved successfully")
	helpers.LogSuccess("CategoryListingsHandler", "listings retrieved successfully", map[string]any{
		"category": category,
		"count":    len(summaries),
	})
}
