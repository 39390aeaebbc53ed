package policy

import (
	"net/url"
	"strings"
)

// DefaultLandingPath はサインイン成功後、どのルールにも一致しなかった場合の遷移先パス。
const DefaultLandingPath = "/top"

// RedirectRule はサインイン後のリダイレクト先を決める1つのルール。
type RedirectRule struct {
	Name        string
	Match       func(target string, base *url.URL) bool
	Destination func(target string, base *url.URL) string
}

// RedirectPolicy は順序付きのルール列。先頭から評価し、最初に一致したルールの遷移先を返す。
type RedirectPolicy struct {
	rules   []RedirectRule
	baseURL *url.URL
}

// NewRedirectPolicy はデフォルトのルール列でRedirectPolicyを生成する。
//
// 評価順:
//
//	relative-path → same-origin → (default) BASE_URL + /top
func NewRedirectPolicy(baseURL string) (*RedirectPolicy, error) {
	return NewRedirectPolicyWithRules(baseURL, DefaultRedirectRules())
}

// NewRedirectPolicyWithRules は任意のルール列でRedirectPolicyを生成する。
func NewRedirectPolicyWithRules(baseURL string, rules []RedirectRule) (*RedirectPolicy, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	return &RedirectPolicy{rules: rules, baseURL: u}, nil
}

// DefaultRedirectRules は標準のリダイレクトルールを返す。
func DefaultRedirectRules() []RedirectRule {
	return []RedirectRule{
		{
			Name: "relative-path",
			Match: func(target string, _ *url.URL) bool {
				// "//evil.example" や "/\evil.example" はブラウザが別ホストとして解釈するため除外する
				return strings.HasPrefix(target, "/") &&
					!strings.HasPrefix(target, "//") &&
					!strings.HasPrefix(target, "/\\")
			},
			Destination: func(target string, base *url.URL) string {
				return base.String() + target
			},
		},
		{
			Name: "same-origin",
			Match: func(target string, base *url.URL) bool {
				u, err := url.Parse(target)
				if err != nil || !u.IsAbs() {
					return false
				}
				return u.Scheme == base.Scheme && u.Host == base.Host
			},
			Destination: func(target string, _ *url.URL) string {
				return target
			},
		},
	}
}

// Resolve はリダイレクト先の絶対URLを返す。
func (p *RedirectPolicy) Resolve(target string) string {
	for _, rule := range p.rules {
		if rule.Match(target, p.baseURL) {
			return rule.Destination(target, p.baseURL)
		}
	}
	return p.baseURL.String() + DefaultLandingPath
}
