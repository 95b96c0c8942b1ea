package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleAccountsURL = "https://mybusinessaccountmanagement.googleapis.com/v1/accounts"
	// ロケーションはAccount Managementとは別のBusiness Information APIに属する。
	defaultGoogleLocationsBaseURL = "https://mybusinessbusinessinformation.googleapis.com/v1"
	// googleBusinessScope はビジネスプロフィールの読み書きスコープ。
	googleBusinessScope = "https://www.googleapis.com/auth/business.manage"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL          string
	TokenURL         string
	AccountsURL      string
	LocationsBaseURL string
}

// GoogleOAuthProvider はGoogleビジネスプロフィール接続のOAuthプロバイダー。
// トークン取得後、Account Management APIでアカウントを、
// Business Information APIでロケーションを発見し、
// 最初のロケーション名をプラットフォーム側ビジネスIDとして返す。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.AccountsURL == "" {
		config.AccountsURL = defaultGoogleAccountsURL
	}
	if config.LocationsBaseURL == "" {
		config.LocationsBaseURL = defaultGoogleLocationsBaseURL
	}
	return &GoogleOAuthProvider{config: config}
}

// Platform はPlatformGoogleを返す。
func (p *GoogleOAuthProvider) Platform() model.Platform {
	return model.PlatformGoogle
}

// GetConnectURL はGoogle OAuthの認可URLを生成する。
// リフレッシュトークンを確実に取得するためaccess_type=offlineと
// prompt=consentを指定する。
func (p *GoogleOAuthProvider) GetConnectURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {googleBusinessScope},
		"state":         {state},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode は認可コードをトークンに交換し、ビジネスIDを発見する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*ConnectionMaterial, error) {
	tokenResp, err := p.requestToken(ctx, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	businessID, err := p.discoverBusinessID(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to discover business location: %w", err)
	}

	return &ConnectionMaterial{
		Token: OAuthToken{
			AccessToken:  tokenResp.AccessToken,
			RefreshToken: tokenResp.RefreshToken,
			ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		},
		PlatformBusinessID: businessID,
	}, nil
}

// RefreshToken はリフレッシュトークンで新しいアクセストークンを取得する。
// Googleはリフレッシュ時に新しいリフレッシュトークンを返さないため、
// 戻り値のRefreshTokenは空になる（呼び出し元が既存の値を維持する）。
func (p *GoogleOAuthProvider) RefreshToken(ctx context.Context, refreshToken string) (*OAuthToken, error) {
	tokenResp, err := p.requestToken(ctx, url.Values{
		"refresh_token": {refreshToken},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return &OAuthToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// requestToken はトークンエンドポイントへのPOSTを実行する。
func (p *GoogleOAuthProvider) requestToken(ctx context.Context, data url.Values) (*googleTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// googleAccountsResponse はAccount Management APIのアカウント一覧レスポンス。
type googleAccountsResponse struct {
	Accounts []struct {
		Name string `json:"name"` // 例: "accounts/123456789"
	} `json:"accounts"`
}

// googleLocationsResponse はBusiness Information APIのロケーション一覧レスポンス。
type googleLocationsResponse struct {
	Locations []struct {
		Name string `json:"name"` // 例: "locations/987654321"
	} `json:"locations"`
}

// discoverBusinessID はアカウント一覧とロケーション一覧を順に取得し、
// 最初のロケーションのリソース名を返す。
func (p *GoogleOAuthProvider) discoverBusinessID(ctx context.Context, accessToken string) (string, error) {
	var accounts googleAccountsResponse
	if err := p.getJSON(ctx, p.config.AccountsURL, accessToken, &accounts); err != nil {
		return "", fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts.Accounts) == 0 {
		return "", fmt.Errorf("no business account found")
	}

	// account.Nameは "accounts/{id}" 形式のリソース名のため、
	// ベースURLにそのまま連結して "/v1/accounts/{id}/locations" を構成する。
	locationsURL := fmt.Sprintf("%s/%s/locations?readMask=name",
		p.config.LocationsBaseURL, accounts.Accounts[0].Name)
	var locations googleLocationsResponse
	if err := p.getJSON(ctx, locationsURL, accessToken, &locations); err != nil {
		return "", fmt.Errorf("failed to list locations: %w", err)
	}
	if len(locations.Locations) == 0 {
		return "", fmt.Errorf("no business location found")
	}

	return locations.Locations[0].Name, nil
}

// getJSON はBearerトークン付きGETを実行してJSONをデコードする。
func (p *GoogleOAuthProvider) getJSON(ctx context.Context, rawURL, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
var _ TokenRefresher = (*GoogleOAuthProvider)(nil)
