package database

import (
	"context"
	"fmt"
	"time"

	"questlock/models"

	"gorm.io/gorm/clause"
)

// AcquireLease claims the named lease for holder until now+ttl. It succeeds
// when the lease is unclaimed, already held by holder, or expired. It
// reports false, nil if another holder owns a live lease.
func (s *Store) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration, now time.Time) (bool, error) {
	expires := now.Add(ttl)

	insert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SweeperLease{Name: name, Holder: holder, ExpiresAt: expires})
	if insert.Error != nil {
		return false, fmt.Errorf("lease insert: %w", insert.Error)
	}
	if insert.RowsAffected == 1 {
		return true, nil
	}

	res := s.db.WithContext(ctx).Model(&models.SweeperLease{}).
		Where("name = ? AND (holder = ? OR expires_at < ?)", name, holder, now).
		Updates(map[string]any{"holder": holder, "expires_at": expires})
	if res.Error != nil {
		return false, fmt.Errorf("lease renew: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseLease drops the lease if holder still owns it.
func (s *Store) ReleaseLease(ctx context.Context, name, holder string) error {
	err := s.db.WithContext(ctx).
		Where("name = ? AND holder = ?", name, holder).
		Delete(&models.SweeperLease{}).Error
	if err != nil {
		return fmt.Errorf("lease release: %w", err)
	}
	return nil
}
