// Package mapper は正準ビジネスモデルから各プラットフォームの
// ワイヤ表現への変換を提供する。
// 変換はI/Oを伴わない決定的な処理であり、プラットフォームごとに
// 単体テスト可能な純粋関数として実装する。
package mapper

import (
	"fmt"

	"github.com/hitoshi/profileman/internal/model"
)

// DescriptionSanitizer は説明文からHTMLを除去するインターフェース。
type DescriptionSanitizer interface {
	Sanitize(raw string) string
}

// WebsiteValidator はウェブサイトURLの安全性検証のインターフェース。
type WebsiteValidator interface {
	ValidateURL(rawURL string) error
}

// Payload はマッピング済みのプラットフォーム向けデータを表す。
// 説明文の文字数制限超過時は切り詰めを行わず、OverLimitフラグを立てて
// そのまま渡す。超過時の扱い（拒否・再編集の促し）は呼び出し元が決める。
type Payload struct {
	Platform model.Platform

	// Description はサニタイズ済みの説明文。
	// オーバーライドがあればオーバーライド、なければ正準の説明文。
	Description string
	// DescriptionLimit はプラットフォームの説明文の最大文字数。
	DescriptionLimit int
	// OverLimit はDescriptionがDescriptionLimitを超えているか。
	OverLimit bool

	// WebsiteURL は検証済みのウェブサイトURL。検証に失敗した場合は空。
	WebsiteURL string

	// GoogleHours / GoogleSpecialHours はplatform=googleの場合のみ設定される。
	GoogleHours        *GoogleRegularHours
	GoogleSpecialHours *GoogleSpecialHours

	// FacebookHours はplatform=facebook/instagramの場合のみ設定される。
	FacebookHours map[string]string
}

// Mapper は正準ビジネスプロフィールをプラットフォーム別ペイロードに変換する。
type Mapper struct {
	sanitizer DescriptionSanitizer
	validator WebsiteValidator
}

// New はMapperを生成する。
func New(sanitizer DescriptionSanitizer, validator WebsiteValidator) *Mapper {
	return &Mapper{
		sanitizer: sanitizer,
		validator: validator,
	}
}

// MapForPlatform は指定プラットフォーム向けのペイロードを生成する。
// 説明文の解決順序: プラットフォーム別オーバーライド（空でない場合）→ 正準。
// サニタイズ後の文字数で制限超過を判定する。
// 文字数は文字（rune）単位で数える。
// 未知のプラットフォームの場合はエラーを返す。
func (m *Mapper) MapForPlatform(platform model.Platform, profile *model.BusinessProfile) (*Payload, error) {
	cfg, ok := model.ConfigFor(platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}

	description := m.sanitizer.Sanitize(profile.DescriptionFor(platform))

	payload := &Payload{
		Platform:         platform,
		Description:      description,
		DescriptionLimit: cfg.MaxDescriptionLength,
		OverLimit:        len([]rune(description)) > cfg.MaxDescriptionLength,
	}

	if profile.WebsiteURL != "" && m.validator.ValidateURL(profile.WebsiteURL) == nil {
		payload.WebsiteURL = profile.WebsiteURL
	}

	switch platform {
	case model.PlatformGoogle:
		payload.GoogleHours = ToGoogleHours(profile.Hours)
		if cfg.SupportsSpecialDays {
			payload.GoogleSpecialHours = ToGoogleSpecialHours(profile.SpecialDays)
		}
	case model.PlatformFacebook, model.PlatformInstagram:
		payload.FacebookHours = ToFacebookHours(profile.Hours)
	}

	return payload, nil
}
