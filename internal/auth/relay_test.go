package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenRelay_Exchange_Success(t *testing.T) {
	var gotPath string
	var gotBody relayRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"access_token":"t1","refresh_token":"r1","user":{"id":42,"email":"taro@tokium.jp","name":"Taro","google_id":"g-1"}}`))
	}))
	defer srv.Close()

	relay := NewTokenRelay(srv.URL+"/", srv.Client())
	result, err := relay.Exchange(context.Background(), ProviderGoogle, "id-token", "taro@tokium.jp")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if gotPath != "/api/auth/google" {
		t.Errorf("path = %q, want %q", gotPath, "/api/auth/google")
	}
	if gotBody.IDToken != "id-token" || gotBody.Email != "taro@tokium.jp" {
		t.Errorf("request body = %+v", gotBody)
	}
	if result.Tokens.AccessToken != "t1" || result.Tokens.RefreshToken != "r1" {
		t.Errorf("tokens = %+v", result.Tokens)
	}
	// 数値IDは文字列に正規化される
	if result.User.ID != "42" {
		t.Errorf("user id = %q, want %q", result.User.ID, "42")
	}
	if result.User.GoogleID != "g-1" {
		t.Errorf("google id = %q, want %q", result.User.GoogleID, "g-1")
	}
}

func TestTokenRelay_Exchange_StringIDAndEmailFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"access_token":"t1","user":{"id":"u-1","name":"Taro"}}`))
	}))
	defer srv.Close()

	result, err := NewTokenRelay(srv.URL, nil).Exchange(context.Background(), ProviderGoogle, "id-token", "taro@tokium.jp")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if result.User.ID != "u-1" {
		t.Errorf("user id = %q, want %q", result.User.ID, "u-1")
	}
	if result.User.Email != "taro@tokium.jp" {
		t.Errorf("user email = %q, want fallback to request email", result.User.Email)
	}
}

func TestTokenRelay_Exchange_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-2xx status", http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"success false", http.StatusOK, `{"success":false,"access_token":"t1","user":{"id":1}}`},
		{"missing access token", http.StatusOK, `{"success":true,"user":{"id":1}}`},
		{"missing user", http.StatusOK, `{"success":true,"access_token":"t1"}`},
		{"null user id", http.StatusOK, `{"success":true,"access_token":"t1","user":{"id":null}}`},
		{"malformed json", http.StatusOK, `{"success":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewTokenRelay(srv.URL, nil).Exchange(context.Background(), ProviderGoogle, "id-token", "taro@tokium.jp")
			if !errors.Is(err, ErrRelayFailed) {
				t.Errorf("error = %v, want ErrRelayFailed", err)
			}
		})
	}
}

func TestTokenRelay_Exchange_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewTokenRelay(url, nil).Exchange(context.Background(), ProviderGoogle, "id-token", "taro@tokium.jp")
	if !errors.Is(err, ErrRelayFailed) {
		t.Errorf("error = %v, want ErrRelayFailed", err)
	}
}
