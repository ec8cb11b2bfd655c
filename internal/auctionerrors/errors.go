package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrViewNotFound    = errors.New("listing never viewed")
	ErrNoBids          = errors.New("no bids found for listing")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrConflict        = errors.New("concurrent modification, please retry")
)

// business logic errors
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrForbidden          = errors.New("action not allowed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrBidTooLow          = errors.New("bid amount too low")
	ErrAuctionClosed      = errors.New("auction is closed")
)
