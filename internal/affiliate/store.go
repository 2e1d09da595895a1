package affiliate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

// MySQLStore implements Store on the shared connection pool. Every write is a
// single-row conditional update, so concurrent engine runs coordinate through
// the database rather than in-process locks.
type MySQLStore struct {
	DB *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{DB: db}
}

func (s *MySQLStore) GetCafe(ctx context.Context, id int64) (*models.Cafe, error) {
	var c models.Cafe
	query := `
		SELECT id, user_id, name, status, business_reg_no, first_approved_at,
		       lat, lng, curbside_fee_cents,
		       referred_by, affiliate_id, affiliate_window_start,
		       affiliate_window_end, affiliate_period_orders,
		       created_at, updated_at
		FROM cafes
		WHERE id = ?`

	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Status, &c.BusinessRegNo, &c.FirstApprovedAt,
		&c.Lat, &c.Lng, &c.CurbsideFeeCents,
		&c.ReferredBy, &c.AffiliateID, &c.AffiliateWindowStart,
		&c.AffiliateWindowEnd, &c.AffiliatePeriodOrders,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cafe %d: %w", id, err)
	}
	return &c, nil
}

func (s *MySQLStore) InitAffiliateWindow(ctx context.Context, cafeID int64, start, end time.Time) (bool, error) {
	// The IS NULL guard makes this a set-once write: only the first order
	// after the cafe gains an affiliate link ever creates the window.
	query := `
		UPDATE cafes
		SET affiliate_window_start = ?, affiliate_window_end = ?,
		    affiliate_period_orders = 1, updated_at = ?
		WHERE id = ? AND affiliate_window_start IS NULL`

	result, err := s.DB.ExecContext(ctx, query, start, end, time.Now(), cafeID)
	if err != nil {
		return false, fmt.Errorf("failed to init affiliate window: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *MySQLStore) IncrementPeriodOrders(ctx context.Context, cafeID int64) error {
	query := `
		UPDATE cafes
		SET affiliate_period_orders = affiliate_period_orders + 1, updated_at = ?
		WHERE id = ?`

	if _, err := s.DB.ExecContext(ctx, query, time.Now(), cafeID); err != nil {
		return fmt.Errorf("failed to increment period orders: %w", err)
	}
	return nil
}

func (s *MySQLStore) FindActiveAffiliateByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var a models.Affiliate
	query := `
		SELECT id, user_id, referral_code, status, total_commission_cents,
		       total_referrals, created_at, updated_at
		FROM affiliates
		WHERE LOWER(referral_code) = ? AND status = ?`

	err := s.DB.QueryRowContext(ctx, query, code, models.AffiliateStatusActive).Scan(
		&a.ID, &a.UserID, &a.ReferralCode, &a.Status, &a.TotalCommissionCents,
		&a.TotalReferrals, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	return &a, nil
}

func (s *MySQLStore) CacheAffiliateID(ctx context.Context, cafeID, affiliateID int64) error {
	// Write-through cache of the code lookup. The IS NULL guard means the
	// cached id is never overwritten, even if the referral code changes later.
	query := `
		UPDATE cafes
		SET affiliate_id = ?, updated_at = ?
		WHERE id = ? AND affiliate_id IS NULL`

	if _, err := s.DB.ExecContext(ctx, query, affiliateID, time.Now(), cafeID); err != nil {
		return fmt.Errorf("failed to cache affiliate id: %w", err)
	}
	return nil
}

func (s *MySQLStore) AddReferredCafe(ctx context.Context, affiliateID, cafeID int64) (bool, error) {
	// INSERT IGNORE against the unique (affiliate_id, cafe_id) key gives the
	// referred set its set semantics.
	query := `
		INSERT IGNORE INTO affiliate_referred_cafes (affiliate_id, cafe_id, created_at)
		VALUES (?, ?, ?)`

	result, err := s.DB.ExecContext(ctx, query, affiliateID, cafeID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to add referred cafe: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	countQuery := `
		UPDATE affiliates
		SET total_referrals = total_referrals + 1, updated_at = ?
		WHERE id = ?`
	if _, err := s.DB.ExecContext(ctx, countQuery, time.Now(), affiliateID); err != nil {
		return false, fmt.Errorf("failed to bump referral count: %w", err)
	}
	return true, nil
}

func (s *MySQLStore) HasCommissionForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM commission_records WHERE order_id = ?)"
	if err := s.DB.QueryRowContext(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existing commission: %w", err)
	}
	return exists, nil
}

func (s *MySQLStore) CreateCommissionRecord(ctx context.Context, rec *models.CommissionRecord) (bool, error) {
	// The unique key on order_id is the idempotency guard; a duplicate
	// delivery loses the insert instead of writing a second record.
	query := `
		INSERT IGNORE INTO commission_records
		(affiliate_id, cafe_id, order_id, order_amount_cents,
		 platform_fee_cents, commission_cents, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.DB.ExecContext(ctx, query,
		rec.AffiliateID, rec.CafeID, rec.OrderID, rec.OrderAmountCents,
		rec.PlatformFeeCents, rec.CommissionCents, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create commission record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return true, nil
}

func (s *MySQLStore) AddCommission(ctx context.Context, affiliateID, amountCents int64) error {
	query := `
		UPDATE affiliates
		SET total_commission_cents = total_commission_cents + ?, updated_at = ?
		WHERE id = ?`

	if _, err := s.DB.ExecContext(ctx, query, amountCents, time.Now(), affiliateID); err != nil {
		return fmt.Errorf("failed to add commission to affiliate: %w", err)
	}
	return nil
}
