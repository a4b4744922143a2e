// Package seed provisions a small demo catalog for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/appointly/internal/account/domain"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"gorm.io/gorm"
)

const (
	demoTechEmail   = "tech@appointly.local"
	demoTechName    = "Demo Nail Studio"
	demoClientEmail = "client@appointly.local"
	demoClientName  = "Demo Client"
	demoNoShowFee   = 50
)

type demoService struct {
	name     string
	price    string
	duration int
}

var demoServices = []demoService{
	{name: "Gel manicure", price: "45.00", duration: 60},
	{name: "Full set acrylics", price: "100.00", duration: 90},
	{name: "Polish change", price: "20.00", duration: 30},
}

type Catalog struct {
	TechUserID    snowflake.ID
	TechProfileID snowflake.ID
	ClientID      snowflake.ID
	ServiceIDs    []snowflake.ID
}

// EnsureDemoCatalog creates a tech with a priced service menu and a client
// account. Running it again returns the existing rows.
func EnsureDemoCatalog(db *gorm.DB) (Catalog, error) {
	if db == nil {
		return Catalog{}, errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return Catalog{}, err
	}

	var catalog Catalog
	ctx := context.Background()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		techUser, err := ensureAccountTx(ctx, tx, node, demoTechEmail, demoTechName, now)
		if err != nil {
			return err
		}
		client, err := ensureAccountTx(ctx, tx, node, demoClientEmail, demoClientName, now)
		if err != nil {
			return err
		}
		profile, err := ensureTechProfileTx(ctx, tx, node, techUser.ID, now)
		if err != nil {
			return err
		}
		serviceIDs, err := ensureServicesTx(ctx, tx, node, profile.ID, now)
		if err != nil {
			return err
		}

		catalog = Catalog{
			TechUserID:    techUser.ID,
			TechProfileID: profile.ID,
			ClientID:      client.ID,
			ServiceIDs:    serviceIDs,
		}
		return nil
	})
	return catalog, err
}

func ensureAccountTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email, name string, now time.Time) (accountdomain.Account, error) {
	var account accountdomain.Account
	err := tx.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&account).Error
	if err != nil {
		return account, err
	}
	if account.ID != 0 {
		return account, nil
	}

	account = accountdomain.Account{
		ID:                 node.Generate(),
		Email:              email,
		Name:               name,
		SubscriptionTier:   accountdomain.TierFree,
		SubscriptionStatus: accountdomain.SubscriptionInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return account, tx.WithContext(ctx).Create(&account).Error
}

func ensureTechProfileTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, userID snowflake.ID, now time.Time) (bookingdomain.TechProfile, error) {
	var profile bookingdomain.TechProfile
	err := tx.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&profile).Error
	if err != nil {
		return profile, err
	}
	if profile.ID != 0 {
		return profile, nil
	}

	profile = bookingdomain.TechProfile{
		ID:               node.Generate(),
		UserID:           userID,
		DisplayName:      demoTechName,
		NoShowFeeEnabled: true,
		NoShowFeePercent: demoNoShowFee,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return profile, tx.WithContext(ctx).Create(&profile).Error
}

func ensureServicesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, techProfileID snowflake.ID, now time.Time) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(demoServices))
	for _, item := range demoServices {
		var existing bookingdomain.Offering
		err := tx.WithContext(ctx).
			Where("tech_profile_id = ? AND name = ?", techProfileID, item.name).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return nil, err
		}
		if existing.ID != 0 {
			ids = append(ids, existing.ID)
			continue
		}

		svc := bookingdomain.Offering{
			ID:              node.Generate(),
			TechProfileID:   techProfileID,
			Name:            item.name,
			Price:           decimal.RequireFromString(item.price),
			DurationMinutes: item.duration,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.WithContext(ctx).Create(&svc).Error; err != nil {
			return nil, err
		}
		ids = append(ids, svc.ID)
	}
	return ids, nil
}
