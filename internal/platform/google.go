package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/model"
)

const (
	defaultGoogleBusinessURL = "https://mybusinessbusinessinformation.googleapis.com/v1"
)

// GoogleAdapter はGoogleビジネスプロフィールへの書き込みアダプター。
// Business Information APIのロケーションPATCHで説明文と営業時間を更新する。
type GoogleAdapter struct {
	httpClient *http.Client
	creds      CredentialSource
	logger     *slog.Logger
	baseURL    string // テスト用にオーバーライド可能
}

// NewGoogleAdapter はGoogleAdapterを生成する。
// httpClientがnilの場合は10秒タイムアウトのクライアントを使用する。
func NewGoogleAdapter(httpClient *http.Client, creds CredentialSource, logger *slog.Logger) *GoogleAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleAdapter{
		httpClient: httpClient,
		creds:      creds,
		logger:     logger,
		baseURL:    defaultGoogleBusinessURL,
	}
}

// SetBaseURL はAPIのベースURLを差し替える（テスト用）。
func (a *GoogleAdapter) SetBaseURL(baseURL string) {
	a.baseURL = baseURL
}

// Platform はPlatformGoogleを返す。
func (a *GoogleAdapter) Platform() model.Platform {
	return model.PlatformGoogle
}

// googleLocationPatch はロケーションPATCHのリクエストボディ。
type googleLocationPatch struct {
	Profile struct {
		Description string `json:"description"`
	} `json:"profile"`
	RegularHours *mapper.GoogleRegularHours `json:"regularHours,omitempty"`
	SpecialHours *mapper.GoogleSpecialHours `json:"specialHours,omitempty"`
	WebsiteURI   string                     `json:"websiteUri,omitempty"`
}

// Push は説明文と営業時間をGoogleビジネスプロフィールへ書き込む。
// 接続の必須フィールドが欠落している場合はネットワーク呼び出しを行わず
// ConfigurationErrorの結果を返す。
func (a *GoogleAdapter) Push(ctx context.Context, conn *model.PlatformConnection, payload *mapper.Payload) model.SyncResult {
	if conn.PlatformBusinessID == "" {
		return model.FailureResult(model.PlatformGoogle,
			model.NewConfigurationError(model.PlatformGoogle, "platform_business_id"))
	}

	if result, ok := validatePayloadLimit(payload); !ok {
		return result
	}

	token, err := a.creds.GetValidToken(ctx, conn)
	if err != nil {
		return credentialFailure(model.PlatformGoogle, err)
	}

	patch := googleLocationPatch{
		RegularHours: payload.GoogleHours,
		SpecialHours: payload.GoogleSpecialHours,
		WebsiteURI:   payload.WebsiteURL,
	}
	patch.Profile.Description = payload.Description

	updateMask := []string{"profile.description", "regularHours"}
	if payload.GoogleSpecialHours != nil {
		updateMask = append(updateMask, "specialHours")
	}
	if payload.WebsiteURL != "" {
		updateMask = append(updateMask, "websiteUri")
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return model.FailureResult(model.PlatformGoogle,
			model.NewInternalSyncError(model.PlatformGoogle, fmt.Sprintf("ペイロードのエンコードに失敗: %v", err)))
	}

	// ロケーションのリソース名（locations/...）に対してPATCHを発行する
	reqURL := fmt.Sprintf("%s/%s?updateMask=%s",
		a.baseURL, conn.PlatformBusinessID, strings.Join(updateMask, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(body))
	if err != nil {
		return model.FailureResult(model.PlatformGoogle,
			model.NewInternalSyncError(model.PlatformGoogle, fmt.Sprintf("リクエスト作成に失敗: %v", err)))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("GoogleビジネスプロフィールAPIの呼び出しに失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("error", err.Error()),
		)
		return model.FailureResult(model.PlatformGoogle,
			model.NewPlatformAPIError(model.PlatformGoogle, 0, err.Error()))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Error("GoogleビジネスプロフィールAPIがエラーを返しました",
			slog.String("connection_id", conn.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.FailureResult(model.PlatformGoogle,
			model.NewPlatformAPIError(model.PlatformGoogle, resp.StatusCode, string(respBody)))
	}

	a.logger.Info("Googleビジネスプロフィールを更新しました",
		slog.String("connection_id", conn.ID),
		slog.String("location", conn.PlatformBusinessID),
	)

	return model.SuccessResult(model.PlatformGoogle, "Googleビジネスプロフィールを更新しました。")
}

// compile-time interface check
var _ Adapter = (*GoogleAdapter)(nil)
