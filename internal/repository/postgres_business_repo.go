package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/profileman/internal/model"
)

// PostgresBusinessRepo はPostgreSQLを使用したビジネスプロフィールリポジトリ。
// このサブシステムからは読み取りのみを行う。
type PostgresBusinessRepo struct {
	db *sql.DB
}

// NewPostgresBusinessRepo はPostgresBusinessRepoを生成する。
func NewPostgresBusinessRepo(db *sql.DB) *PostgresBusinessRepo {
	return &PostgresBusinessRepo{db: db}
}

// FindByUserID はユーザーのビジネスプロフィールを取得する。見つからない場合はnilを返す。
// hours / special_days / platform_overrides はJSONBカラムからデコードされる。
func (r *PostgresBusinessRepo) FindByUserID(ctx context.Context, userID string) (*model.BusinessProfile, error) {
	profile := &model.BusinessProfile{}
	var hoursJSON, specialDaysJSON, overridesJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, website_url,
		        hours, special_days, platform_overrides, created_at, updated_at
		 FROM businesses WHERE user_id = $1`,
		userID,
	).Scan(
		&profile.ID, &profile.UserID, &profile.Name, &profile.Description,
		&profile.WebsiteURL, &hoursJSON, &specialDaysJSON, &overridesJSON,
		&profile.CreatedAt, &profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ビジネスプロフィールの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(hoursJSON, &profile.Hours); err != nil {
		return nil, fmt.Errorf("営業時間のデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(specialDaysJSON, &profile.SpecialDays); err != nil {
		return nil, fmt.Errorf("特別営業日のデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(overridesJSON, &profile.PlatformOverrides); err != nil {
		return nil, fmt.Errorf("プラットフォーム別説明文のデコードに失敗しました: %w", err)
	}

	return profile, nil
}

// compile-time interface check
var _ BusinessRepository = (*PostgresBusinessRepo)(nil)
