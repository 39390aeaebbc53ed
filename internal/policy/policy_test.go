package policy

import (
	"net/url"
	"testing"
)

func TestIsAllowedEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@tokium.jp", true},
		{"Taro.Yamada@TOKIUM.JP", true},
		{"  a@tokium.jp ", true},
		{"a@example.com", false},
		{"a@sub.tokium.jp", false},
		{"a@tokium.jp.evil.com", false},
		{"tokium.jp", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := IsAllowedEmail(tt.email); got != tt.want {
				t.Errorf("IsAllowedEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestRedirectPolicy_Resolve(t *testing.T) {
	p, err := NewRedirectPolicy("https://lunch.tokium.jp/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"相対パスはBASE_URLに連結", "/mypage", "https://lunch.tokium.jp/mypage"},
		{"クエリ付き相対パス", "/restaurants/1?tab=reviews", "https://lunch.tokium.jp/restaurants/1?tab=reviews"},
		{"同一オリジンの絶対URL", "https://lunch.tokium.jp/admin", "https://lunch.tokium.jp/admin"},
		{"別オリジンはデフォルト", "https://evil.example/phish", "https://lunch.tokium.jp/top"},
		{"スキーム違いはデフォルト", "http://lunch.tokium.jp/admin", "https://lunch.tokium.jp/top"},
		{"プロトコル相対URLはデフォルト", "//evil.example", "https://lunch.tokium.jp/top"},
		{"バックスラッシュ付きはデフォルト", "/\\evil.example", "https://lunch.tokium.jp/top"},
		{"空文字はデフォルト", "", "https://lunch.tokium.jp/top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Resolve(tt.target); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestRedirectPolicy_FirstMatchWins(t *testing.T) {
	rules := []RedirectRule{
		{
			Name:        "always-dashboard",
			Match:       func(string, *url.URL) bool { return true },
			Destination: func(string, *url.URL) string { return "first" },
		},
		{
			Name:        "never-reached",
			Match:       func(string, *url.URL) bool { return true },
			Destination: func(string, *url.URL) string { return "second" },
		},
	}
	p, err := NewRedirectPolicyWithRules("http://localhost:3000", rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Resolve("/anything"); got != "first" {
		t.Errorf("Resolve() = %q, want %q", got, "first")
	}
}

func TestRedirectPolicy_NoRules_UsesDefault(t *testing.T) {
	p, err := NewRedirectPolicyWithRules("http://localhost:3000", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Resolve("/mypage"); got != "http://localhost:3000/top" {
		t.Errorf("Resolve() = %q, want %q", got, "http://localhost:3000/top")
	}
}
