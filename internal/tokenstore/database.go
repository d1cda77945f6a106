package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/lildude/lastactivity/internal/model"
	"github.com/lildude/lastactivity/internal/token"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Database stores the token in a single row of the tokens table.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Load(ctx context.Context) (*token.CachedToken, error) {
	var row model.Token
	err := d.db.WithContext(ctx).First(&row, model.TokenRecordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, token.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading token row: %w", err)
	}
	return &token.CachedToken{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    row.ExpiresAt,
	}, nil
}

// Save upserts the token row so there is never more than one.
func (d *Database) Save(ctx context.Context, t *token.CachedToken) error {
	row := model.Token{
		Model:        gorm.Model{ID: model.TokenRecordID},
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving token row: %w", err)
	}
	return nil
}
