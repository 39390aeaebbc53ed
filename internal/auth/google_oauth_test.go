package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newGoogleTestServers はトークンエンドポイントとユーザー情報エンドポイントのテストサーバーを立てる。
func newGoogleTestServers(t *testing.T, tokenBody map[string]interface{}, userInfo map[string]interface{}) (tokenURL, userInfoURL string) {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenBody)
	}))
	t.Cleanup(tokenServer.Close)

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-access-token" {
			t.Errorf("unexpected Authorization header: %q", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
	t.Cleanup(userInfoServer.Close)

	return tokenServer.URL, userInfoServer.URL
}

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:3000/api/auth/callback/google",
	})

	loginURL := provider.GetLoginURL("test-state-value")

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-client-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope openid", "openid"},
		{"scope email", "email"},
		{"access_type", "access_type=offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(loginURL, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, loginURL)
			}
		})
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenURL, userInfoURL := newGoogleTestServers(t,
		map[string]interface{}{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     "google-id-token",
		},
		map[string]interface{}{
			"sub":            "google-sub-12345",
			"email":          "taro@tokium.jp",
			"email_verified": true,
			"name":           "Taro",
		},
	)

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:3000/api/auth/callback/google",
		TokenURL:     tokenURL,
		UserInfoURL:  userInfoURL,
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if userInfo.Provider != ProviderGoogle {
		t.Errorf("provider = %q, want %q", userInfo.Provider, ProviderGoogle)
	}
	if userInfo.ProviderUserID != "google-sub-12345" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "google-sub-12345")
	}
	if userInfo.Email != "taro@tokium.jp" {
		t.Errorf("email = %q, want %q", userInfo.Email, "taro@tokium.jp")
	}
	if userInfo.IDToken != "google-id-token" {
		t.Errorf("idToken = %q, want %q", userInfo.IDToken, "google-id-token")
	}
	if userInfo.AccessToken != "google-access-token" {
		t.Errorf("accessToken = %q, want %q", userInfo.AccessToken, "google-access-token")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_MissingIDToken(t *testing.T) {
	tokenURL, userInfoURL := newGoogleTestServers(t,
		map[string]interface{}{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		},
		map[string]interface{}{
			"sub":            "google-sub-12345",
			"email":          "taro@tokium.jp",
			"email_verified": true,
		},
	)

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error when id_token is missing")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_UnverifiedEmail(t *testing.T) {
	tokenURL, userInfoURL := newGoogleTestServers(t,
		map[string]interface{}{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"id_token":     "google-id-token",
		},
		map[string]interface{}{
			"sub":            "google-sub-12345",
			"email":          "taro@tokium.jp",
			"email_verified": false,
		},
	)

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error for unverified email")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		TokenURL:     tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "invalid-code"); err == nil {
		t.Fatal("expected error from ExchangeCode with invalid code")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_UserInfoError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"id_token":     "google-id-token",
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "valid-code"); err == nil {
		t.Fatal("expected error from ExchangeCode when user info fetch fails")
	}
}
