package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/model"
)

const (
	defaultFacebookGraphURL = "https://graph.facebook.com/v19.0"
)

// FacebookAdapter はFacebookページ/Instagramビジネスへの書き込みアダプター。
// Graph APIのページ更新エンドポイントにaboutとhoursをPOSTする。
// InstagramはFacebookと同一のAPIサーフェスを共有するため、
// 同じアダプターロジックをプラットフォーム名のみ変えて使用する。
type FacebookAdapter struct {
	httpClient *http.Client
	creds      CredentialSource
	logger     *slog.Logger
	platform   model.Platform
	graphURL   string // テスト用にオーバーライド可能
}

// NewFacebookAdapter はFacebookページ用のアダプターを生成する。
// httpClientがnilの場合は10秒タイムアウトのクライアントを使用する。
func NewFacebookAdapter(httpClient *http.Client, creds CredentialSource, logger *slog.Logger) *FacebookAdapter {
	return newFacebookAdapter(httpClient, creds, logger, model.PlatformFacebook)
}

// NewInstagramAdapter はInstagramビジネス用のアダプターを生成する。
func NewInstagramAdapter(httpClient *http.Client, creds CredentialSource, logger *slog.Logger) *FacebookAdapter {
	return newFacebookAdapter(httpClient, creds, logger, model.PlatformInstagram)
}

func newFacebookAdapter(httpClient *http.Client, creds CredentialSource, logger *slog.Logger, platform model.Platform) *FacebookAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &FacebookAdapter{
		httpClient: httpClient,
		creds:      creds,
		logger:     logger,
		platform:   platform,
		graphURL:   defaultFacebookGraphURL,
	}
}

// SetGraphURL はGraph APIのベースURLを差し替える（テスト用）。
func (a *FacebookAdapter) SetGraphURL(graphURL string) {
	a.graphURL = graphURL
}

// Platform はこのアダプターが扱うプラットフォームを返す。
func (a *FacebookAdapter) Platform() model.Platform {
	return a.platform
}

// Push は説明文と営業時間をGraph APIでページに書き込む。
// 接続の必須フィールドが欠落している場合はネットワーク呼び出しを行わず
// ConfigurationErrorの結果を返す。
func (a *FacebookAdapter) Push(ctx context.Context, conn *model.PlatformConnection, payload *mapper.Payload) model.SyncResult {
	if conn.PlatformBusinessID == "" {
		return model.FailureResult(a.platform,
			model.NewConfigurationError(a.platform, "platform_business_id"))
	}

	if result, ok := validatePayloadLimit(payload); !ok {
		return result
	}

	token, err := a.creds.GetValidToken(ctx, conn)
	if err != nil {
		return credentialFailure(a.platform, err)
	}

	form := url.Values{
		"about":        {payload.Description},
		"access_token": {token},
	}
	if len(payload.FacebookHours) > 0 {
		hoursJSON, err := json.Marshal(payload.FacebookHours)
		if err != nil {
			return model.FailureResult(a.platform,
				model.NewInternalSyncError(a.platform, fmt.Sprintf("営業時間のエンコードに失敗: %v", err)))
		}
		form.Set("hours", string(hoursJSON))
	}
	if payload.WebsiteURL != "" {
		form.Set("website", payload.WebsiteURL)
	}

	reqURL := fmt.Sprintf("%s/%s", a.graphURL, conn.PlatformBusinessID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.FailureResult(a.platform,
			model.NewInternalSyncError(a.platform, fmt.Sprintf("リクエスト作成に失敗: %v", err)))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("Graph APIの呼び出しに失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("platform", string(a.platform)),
			slog.String("error", err.Error()),
		)
		return model.FailureResult(a.platform,
			model.NewPlatformAPIError(a.platform, 0, err.Error()))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Graph APIがエラーを返しました",
			slog.String("connection_id", conn.ID),
			slog.String("platform", string(a.platform)),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.FailureResult(a.platform,
			model.NewPlatformAPIError(a.platform, resp.StatusCode, string(respBody)))
	}

	a.logger.Info("ページ情報を更新しました",
		slog.String("connection_id", conn.ID),
		slog.String("platform", string(a.platform)),
		slog.String("page_id", conn.PlatformBusinessID),
	)

	displayName := "Facebookページ"
	if a.platform == model.PlatformInstagram {
		displayName = "Instagramビジネスプロフィール"
	}
	return model.SuccessResult(a.platform, displayName+"を更新しました。")
}

// compile-time interface check
var _ Adapter = (*FacebookAdapter)(nil)
