// Package assets maintains the device registry: classification of hosts
// seen in alerts and the notification recipients bound to them.
package assets

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"soc-alert-relay-go/internal/model"
)

// Classifier resolves a device name to its classification. Implementations
// must degrade instead of failing: an unknown device is UNCLASSIFIED, and
// a lookup error must not block delivery of the alert being enriched.
type Classifier interface {
	Classify(ctx context.Context, device string) (model.AssetClassification, error)
}

// Service is the gorm-backed asset registry implementing Classifier.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Classify implements Classifier. Unknown devices and lookup failures both
// resolve to UNCLASSIFIED; failures are logged, never propagated.
func (s *Service) Classify(ctx context.Context, device string) (model.AssetClassification, error) {
	var asset model.Asset
	result := s.db.WithContext(ctx).Where("hostname = ?", device).First(&asset)
	if result.Error == gorm.ErrRecordNotFound {
		return model.Unclassified(device), nil
	}
	if result.Error != nil {
		logrus.Warnf("Asset lookup failed for %s, treating as unclassified: %v", device, result.Error)
		return model.Unclassified(device), nil
	}

	classification := model.AssetClassification{
		Device: device,
		Class:  model.AssetClass(asset.Class),
	}

	// The owner shown in notifications is the first enabled binding's user.
	var recipients []model.AssetRecipient
	if err := s.db.WithContext(ctx).
		Where("asset_id = ? AND enabled = ?", asset.ID, true).
		Order("created_at ASC").Find(&recipients).Error; err == nil && len(recipients) > 0 {
		classification.Owner = recipients[0].UserID
	}

	return classification, nil
}

// Ensure registers a first-seen device as UNCLASSIFIED. Existing devices
// are left untouched.
func (s *Service) Ensure(ctx context.Context, device string) error {
	if device == "" {
		return nil
	}
	asset := model.Asset{Hostname: device, Class: string(model.AssetUnclassified)}
	result := s.db.WithContext(ctx).Where("hostname = ?", device).FirstOrCreate(&asset)
	if result.Error != nil {
		return fmt.Errorf("failed to register asset %s: %w", device, result.Error)
	}
	return nil
}

// SetClass reclassifies a device, creating it when absent.
func (s *Service) SetClass(ctx context.Context, device string, class model.AssetClass) (*model.Asset, error) {
	asset := model.Asset{Hostname: device, Class: string(class)}
	result := s.db.WithContext(ctx).Where("hostname = ?", device).FirstOrCreate(&asset)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", device, result.Error)
	}

	if asset.Class != string(class) {
		if err := s.db.WithContext(ctx).Model(&asset).Update("class", string(class)).Error; err != nil {
			return nil, fmt.Errorf("failed to reclassify asset %s: %w", device, err)
		}
		asset.Class = string(class)
	}

	logrus.Infof("Asset %s classified as %s", device, class)
	return &asset, nil
}

// Bind attaches a notification chat to a device. Rebinding an existing
// chat updates its user, risk gate and enabled flag.
func (s *Service) Bind(ctx context.Context, device string, chatID int64, userID string, minRisk model.RiskLevel, enabled bool) (*model.AssetRecipient, error) {
	var asset model.Asset
	result := s.db.WithContext(ctx).Where("hostname = ?", device).First(&asset)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("asset %s is not registered", device)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", device, result.Error)
	}

	recipient := model.AssetRecipient{AssetID: asset.ID, ChatID: chatID}
	result = s.db.WithContext(ctx).
		Where("asset_id = ? AND chat_id = ?", asset.ID, chatID).
		FirstOrCreate(&recipient)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to bind recipient: %w", result.Error)
	}

	updates := map[string]interface{}{
		"user_id":  userID,
		"min_risk": string(minRisk),
		"enabled":  enabled,
	}
	if err := s.db.WithContext(ctx).Model(&recipient).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update recipient binding: %w", err)
	}

	recipient.UserID = userID
	recipient.MinRisk = string(minRisk)
	recipient.Enabled = enabled
	return &recipient, nil
}

// Unbind removes a recipient binding by its ID.
func (s *Service) Unbind(ctx context.Context, recipientID uint) error {
	result := s.db.WithContext(ctx).Delete(&model.AssetRecipient{}, recipientID)
	if result.Error != nil {
		return fmt.Errorf("failed to unbind recipient: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("recipient %d does not exist", recipientID)
	}
	return nil
}

// Recipients returns the enabled bindings for a device, for dispatch fan-out.
func (s *Service) Recipients(ctx context.Context, device string) ([]model.AssetRecipient, error) {
	var asset model.Asset
	result := s.db.WithContext(ctx).Where("hostname = ?", device).First(&asset)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", device, result.Error)
	}

	var recipients []model.AssetRecipient
	if err := s.db.WithContext(ctx).
		Where("asset_id = ? AND enabled = ?", asset.ID, true).
		Order("created_at ASC").Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

// List returns all registered assets.
func (s *Service) List(ctx context.Context) ([]model.Asset, error) {
	var all []model.Asset
	if err := s.db.WithContext(ctx).Order("hostname ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return all, nil
}

// Get returns one asset by hostname, or nil when it is not registered.
func (s *Service) Get(ctx context.Context, device string) (*model.Asset, error) {
	var asset model.Asset
	result := s.db.WithContext(ctx).Where("hostname = ?", device).First(&asset)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", device, result.Error)
	}
	return &asset, nil
}

// AllRecipients returns every binding for a device including disabled ones,
// for the admin API.
func (s *Service) AllRecipients(ctx context.Context, device string) ([]model.AssetRecipient, error) {
	var asset model.Asset
	result := s.db.WithContext(ctx).Where("hostname = ?", device).First(&asset)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", device, result.Error)
	}

	var recipients []model.AssetRecipient
	if err := s.db.WithContext(ctx).
		Where("asset_id = ?", asset.ID).
		Order("created_at ASC").Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}
