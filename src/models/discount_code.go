package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

type DiscountCode struct {
	ID             uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID            `gorm:"type:uuid;index;not null" json:"tenant_id"`
	EventID        uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_discount_codes_event_code,priority:1" json:"event_id"`
	Code           string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_discount_codes_event_code,priority:2" json:"code"`
	Description    string               `json:"description,omitempty"`
	DiscountType   types.DiscountType   `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue  int64                `gorm:"not null" json:"discount_value"`
	MaxRedemptions *int                 `json:"max_redemptions,omitempty"`
	TimesRedeemed  int                  `gorm:"not null;check:chk_discount_codes_redeemed,times_redeemed >= 0" json:"times_redeemed"`
	StartsAt       *time.Time           `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time           `json:"expires_at,omitempty"`
	Status         types.DiscountStatus `gorm:"type:varchar(20);not null" json:"status"`

	types.Timestamps
}

func (d *DiscountCode) InWindow(now time.Time) bool {
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return false
	}
	return true
}

func (d *DiscountCode) CapReached() bool {
	return d.MaxRedemptions != nil && d.TimesRedeemed >= *d.MaxRedemptions
}
