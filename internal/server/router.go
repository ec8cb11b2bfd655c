package server

import (
	"context"
	"net/http"

	account "auction-house/internal/accountService"
	bidding "auction-house/internal/biddingService"
	accounthandler "auction-house/services/account/handler"
	handler "auction-house/services/bidding/handler"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService *bidding.BiddingService, accountService *account.AccountService, store Pinger) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())                     // recover from panics
	router.Use(SessionMiddleware(accountService)) // resolve the signed-in account
	router.Use(RequestLoggerMiddleware)           // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService)
	accountHandler := accounthandler.NewAccountHandler(accountService)

	router.GET("/healthz", func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			utils.JSONError(c, http.StatusServiceUnavailable, err, "store unavailable")
			return
		}
		utils.JSONResponse(c, http.StatusOK, nil, "ok")
	})

	router.POST("/register", accountHandler.RegisterHandler)
	router.POST("/login", accountHandler.LoginHandler)
	router.POST("/logout", accountHandler.LogoutHandler)

	listings := router.Group("/listings")
	{
		listings.GET("", biddingHandler.ListActiveHandler)
		listings.POST("", biddingHandler.CreateListingHandler)
		listings.GET("/:listing_id", biddingHandler.GetListingHandler)
		listings.GET("/:listing_id/bids", biddingHandler.GetBidsByListingHandler)
		listings.POST("/:listing_id/bids", biddingHandler.PlaceBidHandler)
		listings.POST("/:listing_id/comments", biddingHandler.AddCommentHandler)
		listings.POST("/:listing_id/close", biddingHandler.CloseAuctionHandler)
		listings.POST("/:listing_id/watchlist", biddingHandler.ToggleWatchlistHandler)
	}

	categories := router.Group("/categories")
	{
		categories.GET("", biddingHandler.CategoriesHandler)
		categories.GET("/:category_name", biddingHandler.CategoryListingsHandler)
	}

	router.GET("/watchlist", biddingHandler.WatchlistHandler)
	router.GET("/my-listings", biddingHandler.MyListingsHandler)
	router.GET("/notifications", biddingHandler.NotificationsHandler)

	return router
}
