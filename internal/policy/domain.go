// Package policy はアクセス制御ポリシー（許可ドメイン、サインイン後のリダイレクト先）を提供する。
// サインインコールバックとルートガードの双方がこのパッケージを唯一の判定基準として参照する。
package policy

import "strings"

// AllowedDomain はサインインを許可するメールアドレスのドメイン。
// シングルテナント運用のため環境ごとの設定値にはしない。
const AllowedDomain = "tokium.jp"

// IsAllowedEmail はメールアドレスが許可ドメインに属するかを判定する。
// 大文字小文字は区別しない。
func IsAllowedEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	return strings.HasSuffix(email, "@"+AllowedDomain)
}
