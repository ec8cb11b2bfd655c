package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a registered participant in the auction
type Account struct {
	AccountID    string    `gorm:"column:account_id;type:varchar(36);primaryKey" json:"account_id"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(254)" json:"email"`
	FirstName    string    `gorm:"type:varchar(150)" json:"first_name"`
	LastName     string    `gorm:"type:varchar(150)" json:"last_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session binds an opaque token to an account until it expires
type Session struct {
	Token     string    `gorm:"type:varchar(36);primaryKey" json:"token"`
	AccountID string    `gorm:"type:varchar(36);index;not null" json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Listing represents an item up for auction
type Listing struct {
	ListingID   string          `gorm:"column:listing_id;type:varchar(36);primaryKey" json:"listing_id"`
	Title       string          `gorm:"type:varchar(64);not null" json:"title"`
	Description string          `gorm:"type:text;not null" json:"description"`
	StartingBid decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"starting_bid"`
	ImageURL    string          `gorm:"type:varchar(200)" json:"image_url,omitempty"`
	Category    string          `gorm:"type:varchar(64);index" json:"category,omitempty"`
	CreatorID   string          `gorm:"type:varchar(36);index;not null" json:"creator_id"`
	Active      bool            `gorm:"not null" json:"active"`
	WinnerID    *string         `gorm:"type:varchar(36)" json:"winner_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `gorm:"autoUpdateTime" json:"last_updated"`
}

// Bid represents an account's bid on a listing
type Bid struct {
	BidID     string          `gorm:"column:bid_id;type:varchar(36);primaryKey" json:"bid_id"`
	ListingID string          `gorm:"type:varchar(36);index;not null" json:"listing_id"`
	BidderID  string          `gorm:"type:varchar(36);not null" json:"bidder_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

// Comment is free text left on a listing
type Comment struct {
	CommentID   string    `gorm:"column:comment_id;type:varchar(36);primaryKey" json:"comment_id"`
	ListingID   string    `gorm:"type:varchar(36);index;not null" json:"listing_id"`
	CommenterID string    `gorm:"type:varchar(36);not null" json:"commenter_id"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// ListingView is the freshness marker: when an account last opened a listing page
type ListingView struct {
	AccountID string    `gorm:"type:varchar(36);primaryKey" json:"account_id"`
	ListingID string    `gorm:"type:varchar(36);primaryKey" json:"listing_id"`
	LastSeen  time.Time `gorm:"not null" json:"last_seen"`
}

// WatchlistEntry links an account to a listing it watches
type WatchlistEntry struct {
	AccountID string    `gorm:"type:varchar(36);primaryKey" json:"account_id"`
	ListingID string    `gorm:"type:varchar(36);primaryKey" json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingSummary is a listing decorated with its derived auction state
type ListingSummary struct {
	Listing
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastBidderID *string         `json:"last_bidder_id,omitempty"`
	HasUpdates   bool            `json:"has_updates"`
}

// ListingPage is everything shown on a listing's detail page
type ListingPage struct {
	ListingSummary
	Bids     []Bid     `json:"bids"`
	Comments []Comment `json:"comments"`
	Watching bool      `json:"watching"`
}

// NotificationCounts are the badge counts shown to a signed-in account
type NotificationCounts struct {
	Watchlist  int `json:"watchlist_notifications"`
	MyListings int `json:"my_listings_notifications"`
}
