package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

const (
	defaultFacebookDialogURL = "https://www.facebook.com/v19.0/dialog/oauth"
	defaultFacebookGraphURL  = "https://graph.facebook.com/v19.0"

	facebookPageScope = "pages_show_list,pages_manage_metadata,business_management"
	instagramScope    = "pages_show_list,instagram_basic,business_management"
)

// FacebookOAuthConfig はFacebook OAuthプロバイダーの設定。
// InstagramはFacebook Graph APIを共有するため、同じ設定を使用する。
type FacebookOAuthConfig struct {
	AppID       string
	AppSecret   string
	RedirectURL string

	// テスト用にオーバーライド可能なURL
	DialogURL string
	GraphURL  string
}

// FacebookOAuthProvider はFacebookページ/Instagramビジネス接続のOAuthプロバイダー。
// 認可コード交換後、短期トークンを長期トークンに交換し、
// me/accounts で管理ページを発見してページトークンを接続素材として返す。
// Facebookはリフレッシュトークンを発行しないため、TokenRefresherは実装しない。
// 長期トークンの期限切れ後はユーザーによる再接続が必要になる。
type FacebookOAuthProvider struct {
	config   FacebookOAuthConfig
	platform model.Platform
}

// NewFacebookOAuthProvider はFacebookページ接続用のプロバイダーを生成する。
func NewFacebookOAuthProvider(config FacebookOAuthConfig) *FacebookOAuthProvider {
	return newFacebookProvider(config, model.PlatformFacebook)
}

// NewInstagramOAuthProvider はInstagramビジネス接続用のプロバイダーを生成する。
// APIロジックはFacebookと共通で、スコープとビジネスID発見のみが異なる。
func NewInstagramOAuthProvider(config FacebookOAuthConfig) *FacebookOAuthProvider {
	return newFacebookProvider(config, model.PlatformInstagram)
}

func newFacebookProvider(config FacebookOAuthConfig, platform model.Platform) *FacebookOAuthProvider {
	if config.DialogURL == "" {
		config.DialogURL = defaultFacebookDialogURL
	}
	if config.GraphURL == "" {
		config.GraphURL = defaultFacebookGraphURL
	}
	return &FacebookOAuthProvider{config: config, platform: platform}
}

// Platform はこのプロバイダーが扱うプラットフォームを返す。
func (p *FacebookOAuthProvider) Platform() model.Platform {
	return p.platform
}

// GetConnectURL はFacebook OAuthの認可URLを生成する。
func (p *FacebookOAuthProvider) GetConnectURL(state string) string {
	scope := facebookPageScope
	if p.platform == model.PlatformInstagram {
		scope = instagramScope
	}
	params := url.Values{
		"client_id":     {p.config.AppID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {scope},
		"state":         {state},
	}
	return p.config.DialogURL + "?" + params.Encode()
}

// facebookTokenResponse はGraph APIのトークンエンドポイントのレスポンス。
type facebookTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は認可コードをトークンに交換し、管理ページを発見する。
// 手順:
//  1. 認可コードを短期ユーザートークンに交換
//  2. fb_exchange_token で長期ユーザートークン（約60日）に交換
//  3. me/accounts で管理ページ一覧を取得し、最初のページのIDとページトークンを採用
//  4. Instagramの場合はページに紐づくinstagram_business_accountをIDとして採用
func (p *FacebookOAuthProvider) ExchangeCode(ctx context.Context, code string) (*ConnectionMaterial, error) {
	shortToken, err := p.requestToken(ctx, url.Values{
		"code":          {code},
		"client_id":     {p.config.AppID},
		"client_secret": {p.config.AppSecret},
		"redirect_uri":  {p.config.RedirectURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	longToken, err := p.requestToken(ctx, url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {p.config.AppID},
		"client_secret":     {p.config.AppSecret},
		"fb_exchange_token": {shortToken.AccessToken},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange for long-lived token: %w", err)
	}

	pageID, pageToken, err := p.discoverPage(ctx, longToken.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to discover page: %w", err)
	}

	businessID := pageID
	if p.platform == model.PlatformInstagram {
		igID, err := p.discoverInstagramAccount(ctx, pageID, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to discover instagram account: %w", err)
		}
		businessID = igID
	}

	expiresIn := longToken.ExpiresIn
	if expiresIn == 0 {
		// 長期トークンはexpires_inを返さない場合がある（約60日として扱う）
		expiresIn = 60 * 24 * 60 * 60
	}

	return &ConnectionMaterial{
		Token: OAuthToken{
			AccessToken: pageToken,
			ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
		},
		PlatformBusinessID: businessID,
	}, nil
}

// requestToken はoauth/access_tokenエンドポイントへのGETを実行する。
func (p *FacebookOAuthProvider) requestToken(ctx context.Context, params url.Values) (*facebookTokenResponse, error) {
	reqURL := p.config.GraphURL + "/oauth/access_token?" + params.Encode()

	var tokenResp facebookTokenResponse
	if err := p.getJSON(ctx, reqURL, "", &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return &tokenResp, nil
}

// facebookAccountsResponse はme/accountsのレスポンス。
type facebookAccountsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

// discoverPage はユーザーが管理するページの一覧を取得し、
// 最初のページのIDとページアクセストークンを返す。
func (p *FacebookOAuthProvider) discoverPage(ctx context.Context, userToken string) (string, string, error) {
	var accounts facebookAccountsResponse
	reqURL := p.config.GraphURL + "/me/accounts"
	if err := p.getJSON(ctx, reqURL, userToken, &accounts); err != nil {
		return "", "", err
	}
	if len(accounts.Data) == 0 {
		return "", "", fmt.Errorf("no managed page found")
	}
	page := accounts.Data[0]
	if page.AccessToken == "" {
		return "", "", fmt.Errorf("page %s has no access token", page.ID)
	}
	return page.ID, page.AccessToken, nil
}

// facebookIGAccountResponse はページのinstagram_business_accountフィールドのレスポンス。
type facebookIGAccountResponse struct {
	InstagramBusinessAccount struct {
		ID string `json:"id"`
	} `json:"instagram_business_account"`
}

// discoverInstagramAccount はページに紐づくInstagramビジネスアカウントIDを取得する。
func (p *FacebookOAuthProvider) discoverInstagramAccount(ctx context.Context, pageID, pageToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=instagram_business_account", p.config.GraphURL, pageID)
	var igResp facebookIGAccountResponse
	if err := p.getJSON(ctx, reqURL, pageToken, &igResp); err != nil {
		return "", err
	}
	if igResp.InstagramBusinessAccount.ID == "" {
		return "", fmt.Errorf("page %s has no linked instagram business account", pageID)
	}
	return igResp.InstagramBusinessAccount.ID, nil
}

// getJSON はBearerトークン付きGETを実行してJSONをデコードする。
// accessTokenが空の場合はAuthorizationヘッダーを付与しない。
func (p *FacebookOAuthProvider) getJSON(ctx context.Context, rawURL, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

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
var _ OAuthProvider = (*FacebookOAuthProvider)(nil)
