package repository

import (
	"context"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepo implements AuctionDB on top of a SQL database. Writes that depend
// on a read run in a transaction holding the listing row lock, behind an
// in-process per-listing mutex.
type GormRepo struct {
	db    *gorm.DB
	locks *listingLocks
}

// NewGormRepo wraps an opened database
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{
		db:    db,
		locks: newListingLocks(),
	}
}

func (r *GormRepo) CreateAccount(ctx context.Context, account model.Account) error {
	err := r.db.WithContext(ctx).Create(&account).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("create account %s: %w", account.Username, auctionerrors.ErrUsernameTaken)
	}
	return translateError(errors.Wrap(err, "CreateAccount: Create"))
}

func (r *GormRepo) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).First(&account, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Account{}, fmt.Errorf("get account %s: %w", accountID, auctionerrors.ErrAccountNotFound)
	}
	return account, translateError(errors.Wrap(err, "GetAccount: First"))
}

func (r *GormRepo) GetAccountByUsername(ctx context.Context, username string) (model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).First(&account, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Account{}, fmt.Errorf("get account %s: %w", username, auctionerrors.ErrAccountNotFound)
	}
	return account, translateError(errors.Wrap(err, "GetAccountByUsername: First"))
}

func (r *GormRepo) CreateSession(ctx context.Context, session model.Session) error {
	db := r.db.WithContext(ctx)
	if err := requireAccount(db, session.AccountID); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return translateError(errors.Wrap(db.Create(&session).Error, "CreateSession: Create"))
}

func (r *GormRepo) GetSession(ctx context.Context, token string) (model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).First(&session, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, fmt.Errorf("get session: %w", auctionerrors.ErrSessionNotFound)
	}
	return session, translateError(errors.Wrap(err, "GetSession: First"))
}

func (r *GormRepo) DeleteSession(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&model.Session{}).Error
	return translateError(errors.Wrap(err, "DeleteSession: Delete"))
}

func (r *GormRepo) CreateListing(ctx context.Context, listing model.Listing) error {
	db := r.db.WithContext(ctx)
	if err := requireAccount(db, listing.CreatorID); err != nil {
		return fmt.Errorf("create listing %s: %w", listing.ListingID, err)
	}
	return translateError(errors.Wrap(db.Create(&listing).Error, "CreateListing: Create"))
}

func (r *GormRepo) GetListing(ctx context.Context, listingID string) (model.Listing, error) {
	return getListing(r.db.WithContext(ctx), listingID, false)
}

func (r *GormRepo) ListActiveListings(ctx context.Context) ([]model.Listing, error) {
	var listings []model.Listing
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at desc").Order("listing_id").
		Find(&listings).Error
	return nonNilListings(listings), translateError(errors.Wrap(err, "ListActiveListings: Find"))
}

func (r *GormRepo) ListActiveByCategory(ctx context.Context, category string) ([]model.Listing, error) {
	var listings []model.Listing
	err := r.db.WithContext(ctx).
		Where("active = ? AND category = ?", true, category).
		Order("created_at desc").Order("listing_id").
		Find(&listings).Error
	return nonNilListings(listings), translateError(errors.Wrap(err, "ListActiveByCategory: Find"))
}

func (r *GormRepo) ListActiveCategories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("active = ? AND category <> ?", true, "").
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	return categories, translateError(errors.Wrap(err, "ListActiveCategories: Pluck"))
}

func (r *GormRepo) ListListingsByCreator(ctx context.Context, accountID string) ([]model.Listing, error) {
	var listings []model.Listing
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", accountID).
		Order("active desc").Order("last_updated desc").Order("listing_id").
		Find(&listings).Error
	return nonNilListings(listings), translateError(errors.Wrap(err, "ListListingsByCreator: Find"))
}

func (r *GormRepo) ListWatchedListings(ctx context.Context, accountID string) ([]model.Listing, error) {
	var listings []model.Listing
	err := r.db.WithContext(ctx).
		Select("listings.*").
		Joins("JOIN watchlist_entries ON watchlist_entries.listing_id = listings.listing_id").
		Where("watchlist_entries.account_id = ?", accountID).
		Order("listings.active desc").Order("listings.last_updated desc").Order("listings.listing_id").
		Find(&listings).Error
	return nonNilListings(listings), translateError(errors.Wrap(err, "ListWatchedListings: Find"))
}

func (r *GormRepo) GetBidsByListing(ctx context.Context, listingID string) ([]model.Bid, error) {
	db := r.db.WithContext(ctx)
	if _, err := getListing(db, listingID, false); err != nil {
		return nil, err
	}

	bids := []model.Bid{}
	err := db.Where("listing_id = ?", listingID).
		Order("amount desc").Order("created_at asc").
		Find(&bids).Error
	return bids, translateError(errors.Wrap(err, "GetBidsByListing: Find"))
}

func (r *GormRepo) GetHighestBid(ctx context.Context, listingID string) (model.Bid, error) {
	highest, err := highestBid(r.db.WithContext(ctx), listingID)
	if err != nil {
		return model.Bid{}, err
	}
	if highest == nil {
		return model.Bid{}, fmt.Errorf("get highest bid for listing %s: %w", listingID, auctionerrors.ErrNoBids)
	}
	return *highest, nil
}

func (r *GormRepo) RecordBid(ctx context.Context, listingID string, build BidFunc) (model.Bid, error) {
	unlock := r.locks.Lock(listingID)
	defer unlock()

	var bid model.Bid
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := getListing(tx, listingID, true)
		if err != nil {
			return err
		}

		highest, err := highestBid(tx, listingID)
		if err != nil {
			return err
		}

		bid, err = build(listing, highest)
		if err != nil {
			return err
		}
		bid.ListingID = listingID

		if err := tx.Create(&bid).Error; err != nil {
			return errors.Wrap(err, "RecordBid: Create")
		}

		err = tx.Model(&model.Listing{}).
			Where("listing_id = ?", listingID).
			Update("last_updated", bid.CreatedAt).Error
		return errors.Wrap(err, "RecordBid: Update")
	})
	if err != nil {
		return model.Bid{}, translateError(err)
	}
	return bid, nil
}

func (r *GormRepo) CloseListing(ctx context.Context, listingID string, closeFn CloseFunc) (model.Listing, error) {
	unlock := r.locks.Lock(listingID)
	defer unlock()

	var closed model.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := getListing(tx, listingID, true)
		if err != nil {
			return err
		}

		var bids []model.Bid
		if err := tx.Where("listing_id = ?", listingID).Order("created_at asc").Find(&bids).Error; err != nil {
			return errors.Wrap(err, "CloseListing: Find")
		}

		result, err := closeFn(listing, bids)
		if err != nil {
			return err
		}

		listing.Active = result.Active
		listing.WinnerID = result.WinnerID
		listing.LastUpdated = result.LastUpdated

		err = tx.Model(&model.Listing{}).
			Where("listing_id = ?", listingID).
			Updates(map[string]interface{}{
				"active":       listing.Active,
				"winner_id":    listing.WinnerID,
				"last_updated": listing.LastUpdated,
			}).Error
		if err != nil {
			return errors.Wrap(err, "CloseListing: Updates")
		}

		closed = listing
		return nil
	})
	if err != nil {
		return model.Listing{}, translateError(err)
	}
	return closed, nil
}

func (r *GormRepo) CreateComment(ctx context.Context, comment model.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getListing(tx, comment.ListingID, false); err != nil {
			return err
		}

		if err := tx.Create(&comment).Error; err != nil {
			return errors.Wrap(err, "CreateComment: Create")
		}

		err := tx.Model(&model.Listing{}).
			Where("listing_id = ?", comment.ListingID).
			Update("last_updated", comment.CreatedAt).Error
		return errors.Wrap(err, "CreateComment: Update")
	})
	return translateError(err)
}

func (r *GormRepo) GetCommentsByListing(ctx context.Context, listingID string, oldestFirst bool) ([]model.Comment, error) {
	order := "created_at desc"
	if oldestFirst {
		order = "created_at asc"
	}

	comments := []model.Comment{}
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order(order).
		Find(&comments).Error
	return comments, translateError(errors.Wrap(err, "GetCommentsByListing: Find"))
}

func (r *GormRepo) ToggleWatchlist(ctx context.Context, accountID, listingID string, at time.Time) (bool, error) {
	unlock := r.locks.Lock(listingID)
	defer unlock()

	var watching bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getListing(tx, listingID, false); err != nil {
			return err
		}

		res := tx.Where("account_id = ? AND listing_id = ?", accountID, listingID).Delete(&model.WatchlistEntry{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "ToggleWatchlist: Delete")
		}
		if res.RowsAffected > 0 {
			watching = false
			return nil
		}

		entry := model.WatchlistEntry{AccountID: accountID, ListingID: listingID, CreatedAt: at}
		if err := tx.Create(&entry).Error; err != nil {
			return errors.Wrap(err, "ToggleWatchlist: Create")
		}
		watching = true
		return nil
	})
	if err != nil {
		return false, translateError(err)
	}
	return watching, nil
}

func (r *GormRepo) IsWatching(ctx context.Context, accountID, listingID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.WatchlistEntry{}).
		Where("account_id = ? AND listing_id = ?", accountID, listingID).
		Count(&n).Error
	return n > 0, translateError(errors.Wrap(err, "IsWatching: Count"))
}

func (r *GormRepo) TouchListingView(ctx context.Context, accountID, listingID string, at time.Time) error {
	db := r.db.WithContext(ctx)
	if _, err := getListing(db, listingID, false); err != nil {
		return err
	}

	view := model.ListingView{AccountID: accountID, ListingID: listingID, LastSeen: at.UTC()}
	err := db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "listing_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
		}).
		Create(&view).Error
	return translateError(errors.Wrap(err, "TouchListingView: Create"))
}

func (r *GormRepo) GetListingView(ctx context.Context, accountID, listingID string) (model.ListingView, error) {
	var view model.ListingView
	err := r.db.WithContext(ctx).
		First(&view, "account_id = ? AND listing_id = ?", accountID, listingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ListingView{}, fmt.Errorf("get view of listing %s: %w", listingID, auctionerrors.ErrViewNotFound)
	}
	return view, translateError(errors.Wrap(err, "GetListingView: First"))
}

func (r *GormRepo) HasActivitySince(ctx context.Context, listingID string, since time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	since = since.UTC()

	var n int64
	err := db.Model(&model.Bid{}).
		Where("listing_id = ? AND created_at > ?", listingID, since).
		Count(&n).Error
	if err != nil {
		return false, translateError(errors.Wrap(err, "HasActivitySince: Count bids"))
	}
	if n > 0 {
		return true, nil
	}

	err = db.Model(&model.Comment{}).
		Where("listing_id = ? AND created_at > ?", listingID, since).
		Count(&n).Error
	if err != nil {
		return false, translateError(errors.Wrap(err, "HasActivitySince: Count comments"))
	}
	return n > 0, nil
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "Ping: DB")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "Ping: PingContext")
}

// getListing loads a listing, taking its row lock when forUpdate is set and
// the database supports row locks.
func getListing(db *gorm.DB, listingID string, forUpdate bool) (model.Listing, error) {
	if forUpdate && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var listing model.Listing
	err := db.First(&listing, "listing_id = ?", listingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, auctionerrors.ErrListingNotFound)
	}
	if err != nil {
		return model.Listing{}, errors.Wrap(err, "getListing: First")
	}
	return listing, nil
}

func requireAccount(db *gorm.DB, accountID string) error {
	var n int64
	if err := db.Model(&model.Account{}).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
		return translateError(errors.Wrap(err, "requireAccount: Count"))
	}
	if n == 0 {
		return auctionerrors.ErrAccountNotFound
	}
	return nil
}

func highestBid(db *gorm.DB, listingID string) (*model.Bid, error) {
	var bids []model.Bid
	err := db.Where("listing_id = ?", listingID).
		Order("amount desc").Order("created_at asc").
		Limit(1).
		Find(&bids).Error
	if err != nil {
		return nil, errors.Wrap(err, "highestBid: Find")
	}
	if len(bids) == 0 {
		return nil, nil
	}
	return &bids[0], nil
}

func nonNilListings(listings []model.Listing) []model.Listing {
	if listings == nil {
		return []model.Listing{}
	}
	return listings
}

// translateError maps driver errors that mean "somebody else got there
// first" onto ErrConflict. Other errors, nil included, pass through.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return fmt.Errorf("%v: %w", err, auctionerrors.ErrConflict)
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%v: %w", err, auctionerrors.ErrConflict)
		}
	}

	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
