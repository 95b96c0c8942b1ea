package mapper

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/profileman/internal/model"
)

type mockSanitizer struct {
	sanitizeFunc func(raw string) string
}

func (m *mockSanitizer) Sanitize(raw string) string {
	if m.sanitizeFunc != nil {
		return m.sanitizeFunc(raw)
	}
	return raw
}

type mockValidator struct {
	validateURLFunc func(rawURL string) error
}

func (m *mockValidator) ValidateURL(rawURL string) error {
	if m.validateURLFunc != nil {
		return m.validateURLFunc(rawURL)
	}
	return nil
}

func newTestMapper() *Mapper {
	return New(&mockSanitizer{}, &mockValidator{})
}

func testProfile() *model.BusinessProfile {
	return &model.BusinessProfile{
		UserID:      "user-1",
		Name:        "テスト食堂",
		Description: "おいしい定食のお店です。",
		WebsiteURL:  "https://example.com",
		Hours:       weekdayHours(),
	}
}

func TestMapForPlatform_UnknownPlatform(t *testing.T) {
	m := newTestMapper()

	_, err := m.MapForPlatform(model.Platform("myspace"), testProfile())
	if err == nil {
		t.Fatal("expected error for unknown platform, got nil")
	}
}

func TestMapForPlatform_GooglePayload(t *testing.T) {
	m := newTestMapper()

	payload, err := m.MapForPlatform(model.PlatformGoogle, testProfile())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if payload.Platform != model.PlatformGoogle {
		t.Errorf("Platform = %q, want google", payload.Platform)
	}
	if payload.Description != "おいしい定食のお店です。" {
		t.Errorf("Description = %q", payload.Description)
	}
	if payload.GoogleHours == nil {
		t.Error("GoogleHours should be set for google")
	}
	if payload.FacebookHours != nil {
		t.Error("FacebookHours should not be set for google")
	}
	if payload.WebsiteURL != "https://example.com" {
		t.Errorf("WebsiteURL = %q, want %q", payload.WebsiteURL, "https://example.com")
	}
}

func TestMapForPlatform_FacebookPayload(t *testing.T) {
	m := newTestMapper()

	payload, err := m.MapForPlatform(model.PlatformFacebook, testProfile())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if payload.FacebookHours == nil {
		t.Error("FacebookHours should be set for facebook")
	}
	if payload.GoogleHours != nil {
		t.Error("GoogleHours should not be set for facebook")
	}
}

// 説明文の解決順序: オーバーライド → 正準
func TestMapForPlatform_DescriptionOverride(t *testing.T) {
	m := newTestMapper()
	profile := testProfile()
	profile.PlatformOverrides = map[model.Platform]string{
		model.PlatformGoogle: "Google向けの短い説明",
	}

	google, err := m.MapForPlatform(model.PlatformGoogle, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if google.Description != "Google向けの短い説明" {
		t.Errorf("Description = %q, want override", google.Description)
	}

	facebook, err := m.MapForPlatform(model.PlatformFacebook, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if facebook.Description != "おいしい定食のお店です。" {
		t.Errorf("Description = %q, want canonical", facebook.Description)
	}
}

// 文字数制限を超えた説明文は切り詰めずOverLimitフラグを立てること
func TestMapForPlatform_OverLimitFlag(t *testing.T) {
	m := newTestMapper()
	profile := testProfile()
	// Googleの上限(750)は超えるがFacebookの上限(1000)には収まる長さ
	profile.Description = strings.Repeat("あ", 900)

	google, err := m.MapForPlatform(model.PlatformGoogle, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !google.OverLimit {
		t.Error("900 chars should be over google limit (750)")
	}
	if len([]rune(google.Description)) != 900 {
		t.Errorf("description should not be truncated, got %d runes", len([]rune(google.Description)))
	}

	facebook, err := m.MapForPlatform(model.PlatformFacebook, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if facebook.OverLimit {
		t.Error("900 chars should be within facebook limit (1000)")
	}
}

// 制限超過の判定はサニタイズ後の文字数で行うこと
func TestMapForPlatform_SanitizesBeforeLimitCheck(t *testing.T) {
	sanitizer := &mockSanitizer{
		sanitizeFunc: func(raw string) string {
			return strings.ReplaceAll(strings.ReplaceAll(raw, "<b>", ""), "</b>", "")
		},
	}
	m := New(sanitizer, &mockValidator{})
	profile := testProfile()
	// タグ込みでは751文字、サニタイズ後は744文字
	profile.Description = "<b>" + strings.Repeat("あ", 744) + "</b>"

	payload, err := m.MapForPlatform(model.PlatformGoogle, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if payload.OverLimit {
		t.Error("limit check should apply to sanitized length")
	}
	if strings.Contains(payload.Description, "<b>") {
		t.Error("description should be sanitized")
	}
}

// 検証に失敗したウェブサイトURLはペイロードから除外されること
func TestMapForPlatform_InvalidWebsiteURLDropped(t *testing.T) {
	validator := &mockValidator{
		validateURLFunc: func(rawURL string) error {
			return errors.New("内部ネットワークへのURLは許可されていません")
		},
	}
	m := New(&mockSanitizer{}, validator)
	profile := testProfile()
	profile.WebsiteURL = "http://169.254.169.254/latest/meta-data"

	payload, err := m.MapForPlatform(model.PlatformGoogle, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if payload.WebsiteURL != "" {
		t.Errorf("invalid URL should be dropped, got %q", payload.WebsiteURL)
	}
}

// 特別営業日は対応プラットフォーム（google）のみに含まれること
func TestMapForPlatform_SpecialDaysOnlyForGoogle(t *testing.T) {
	m := newTestMapper()
	profile := testProfile()
	profile.SpecialDays = []model.SpecialDay{{Date: "2026-01-01", IsOpen: false}}

	google, err := m.MapForPlatform(model.PlatformGoogle, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if google.GoogleSpecialHours == nil {
		t.Error("google payload should include special hours")
	}

	facebook, err := m.MapForPlatform(model.PlatformFacebook, profile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if facebook.GoogleSpecialHours != nil {
		t.Error("facebook payload should not include google special hours")
	}
}
