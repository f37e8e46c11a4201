package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

type Service struct {
	DB *gorm.DB
}

func (s *Service) Exists(ctx context.Context, userID uint64, formType string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&Draft{}).
		Where("user_id=? AND form_type=?", userID, formType).
		Count(&n).Error
	return n > 0, err
}

func (s *Service) Get(ctx context.Context, userID uint64, formType string) (*Draft, error) {
	var d Draft
	err := s.DB.WithContext(ctx).
		Where("user_id=? AND form_type=?", userID, formType).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Put replaces the user's draft for formType, creating it if absent. One row
// per (user, form type) is enforced by the unique index.
func (s *Service) Put(ctx context.Context, userID uint64, formType string, data json.RawMessage) (*Draft, error) {
	d := Draft{
		UserID:       userID,
		FormType:     formType,
		Data:         data,
		Sections:     pq.StringArray(ExtractSections(data)),
		LastModified: time.Now(),
	}

	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "form_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "sections", "last_modified"}),
		}).
		Create(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) Delete(ctx context.Context, userID uint64, formType string) error {
	res := s.DB.WithContext(ctx).
		Where("user_id=? AND form_type=?", userID, formType).
		Delete(&Draft{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's drafts, most recently modified first.
func (s *Service) List(ctx context.Context, userID uint64) ([]Draft, error) {
	var out []Draft
	err := s.DB.WithContext(ctx).
		Where("user_id=?", userID).
		Order("last_modified desc").
		Find(&out).Error
	return out, err
}
