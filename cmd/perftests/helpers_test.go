package perftests

import (
	"context"
	"fmt"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/models"
	"auction-house/internal/repository"

	"github.com/shopspring/decimal"
)

var benchCategories = []string{"electronics", "books"}

const benchSeller = "seller"

// setupService creates a repository seeded with numListings open listings
func setupService(numListings int, startingBid int64) (*repository.MemoryRepo, *bidding.BiddingService) {
	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	if err := repo.CreateAccount(ctx, models.Account{AccountID: benchSeller, Username: benchSeller}); err != nil {
		panic(err)
	}

	now := time.Now().UTC()
	for i := 0; i < numListings; i++ {
		err := repo.CreateListing(ctx, models.Listing{
			ListingID:   listingID(i),
			Title:       fmt.Sprintf("title_%d", i),
			Description: "Benchmark listing",
			StartingBid: decimal.NewFromInt(startingBid),
			Category:    benchCategories[i%len(benchCategories)],
			CreatorID:   benchSeller,
			Active:      true,
			CreatedAt:   now,
			LastUpdated: now,
		})
		if err != nil {
			panic(err)
		}
	}
	return repo, bidding.NewBiddingService(repo, benchCategories)
}

func listingID(i int) string {
	return fmt.Sprintf("listing_%d", i)
}

func bidder(id string) *models.Account {
	return &models.Account{AccountID: id, Username: id}
}

func amount(v int64) string {
	return decimal.NewFromInt(v).StringFixed(2)
}
