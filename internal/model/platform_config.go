// Package model はドメインモデルを定義する。
package model

// PlatformConfig はプラットフォームごとの静的な制約と表示情報を保持する。
// Field Mapperの文字数検証を駆動する。実行時に変更されることはない。
type PlatformConfig struct {
	DisplayName          string
	Description          string
	MaxDescriptionLength int
	// SupportsSpecialDays は特別営業日（祝日等）の同期に対応しているか。
	SupportsSpecialDays bool
}

// platformConfigs は全プラットフォームの静的設定。
var platformConfigs = map[Platform]PlatformConfig{
	PlatformGoogle: {
		DisplayName:          "Googleビジネスプロフィール",
		Description:          "Google検索とGoogleマップに表示されるビジネス情報",
		MaxDescriptionLength: 750,
		SupportsSpecialDays:  true,
	},
	PlatformFacebook: {
		DisplayName:          "Facebookページ",
		Description:          "Facebookページの基本情報と営業時間",
		MaxDescriptionLength: 1000,
	},
	PlatformInstagram: {
		DisplayName:          "Instagramビジネス",
		Description:          "Instagramビジネスアカウントのプロフィール情報",
		MaxDescriptionLength: 1000,
	},
	PlatformFirmy: {
		DisplayName:          "Firmy.cz",
		Description:          "Firmy.czの企業リスティング（準備中）",
		MaxDescriptionLength: 1000,
	},
}

// KnownPlatforms は対応プラットフォームの固定順序。
var KnownPlatforms = []Platform{
	PlatformGoogle, PlatformFacebook, PlatformInstagram, PlatformFirmy,
}

// ConfigFor は指定プラットフォームの静的設定を返す。
// 未知のプラットフォームの場合は2番目の戻り値がfalseになる。
func ConfigFor(platform Platform) (PlatformConfig, bool) {
	cfg, ok := platformConfigs[platform]
	return cfg, ok
}

// IsKnownPlatform は対応プラットフォームかどうかを返す。
func IsKnownPlatform(platform Platform) bool {
	_, ok := platformConfigs[platform]
	return ok
}
