package main

import (
	"context"
	"errors"
	"fmt"

	account "auction-house/internal/accountService"
	"auction-house/internal/auctionerrors"
	bidding "auction-house/internal/biddingService"
	"auction-house/utils"
)

const (
	demoUsername = "demo"
	demoPassword = "demo-password"
)

// seedDemo registers a demo seller with a few open listings. It does nothing
// when the demo account already exists.
func seedDemo(ctx context.Context, accounts *account.AccountService, auctions *bidding.BiddingService) error {
	seller, _, err := accounts.Register(ctx, account.RegisterInput{
		Username:     demoUsername,
		Email:        "demo@example.com",
		FirstName:    "Demo",
		LastName:     "Seller",
		Password:     demoPassword,
		Confirmation: demoPassword,
	})
	if errors.Is(err, auctionerrors.ErrUsernameTaken) {
		utils.Info("Demo data already present", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to register demo account: %w", err)
	}

	listings := []bidding.ListingInput{
		{Title: "Vintage film camera", Description: "35mm rangefinder, recently serviced.", StartingBid: "100.00", Category: "electronics"},
		{Title: "Oak writing desk", Description: "Solid oak, two drawers.", StartingBid: "200.00", Category: "furniture"},
		{Title: "First edition novel", Description: "Signed by the author.", StartingBid: "150.00", Category: "books"},
	}

	for _, in := range listings {
		listing, err := auctions.CreateListing(ctx, &seller, in)
		if err != nil {
			return fmt.Errorf("failed to create demo listing %q: %w", in.Title, err)
		}
		utils.Debug("Seeded demo listing", map[string]any{"listing_id": listing.ListingID, "title": listing.Title})
	}

	utils.Info("Seeded demo data", map[string]any{"account_id": seller.AccountID, "listings": len(listings)})
	return nil
}
