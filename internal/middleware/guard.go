package middleware

import (
	"net/http"
	"strings"

	"github.com/tokium/lunchmap/internal/model"
	"github.com/tokium/lunchmap/internal/policy"
)

// Decision はルートガードの判定結果。
type Decision string

const (
	// DecisionPass は保護対象外のパスであることを示す。
	DecisionPass Decision = "PASS"
	// DecisionCheck は保護対象のパスでセッションを確認中であることを示す。
	DecisionCheck Decision = "CHECK"
	// DecisionDenyNoAuth は有効なセッションが無いことを示す。
	DecisionDenyNoAuth Decision = "DENY_NO_AUTH"
	// DecisionDenyWrongDomain はサインイン済みだが許可ドメイン外であることを示す。
	DecisionDenyWrongDomain Decision = "DENY_WRONG_DOMAIN"
	// DecisionAllow はアクセスを許可することを示す。
	DecisionAllow Decision = "ALLOW"
)

// DefaultProtectedPrefixes はルートガードが保護するページパスの接頭辞。
var DefaultProtectedPrefixes = []string{"/mypage", "/admin", "/dashboard"}

// DecisionRecorder はガード判定の記録先。metrics.Collectorが満たす。
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// Guard は保護対象パスへのページリクエストを判定する。
type Guard struct {
	Prefixes []string
}

// NewGuard はGuardを生成する。prefixesが空の場合はDefaultProtectedPrefixesを使う。
func NewGuard(prefixes []string) *Guard {
	if len(prefixes) == 0 {
		prefixes = DefaultProtectedPrefixes
	}
	normalized := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return &Guard{Prefixes: normalized}
}

// Match はpathに一致する最長の保護接頭辞を返す。
// 一致はパスセグメント境界で判定する（/admin は /admin と /admin/x に一致し、/administrator には一致しない）。
func (g *Guard) Match(path string) (string, bool) {
	matched := ""
	for _, prefix := range g.Prefixes {
		if path != prefix && !strings.HasPrefix(path, prefix+"/") {
			continue
		}
		if len(prefix) > len(matched) {
			matched = prefix
		}
	}
	return matched, matched != ""
}

// Evaluate はpathとセッションから最終的な判定を返す。
// CHECKは中間状態のため戻り値には現れない。
func (g *Guard) Evaluate(path string, session *model.Session) Decision {
	if _, ok := g.Match(path); !ok {
		return DecisionPass
	}
	return check(session)
}

// check はCHECK状態からの遷移を行う。
func check(session *model.Session) Decision {
	if !session.Authenticated() {
		return DecisionDenyNoAuth
	}
	if !policy.IsAllowedEmail(session.Email()) {
		return DecisionDenyWrongDomain
	}
	return DecisionAllow
}

// GuardConfig はルートガードミドルウェアの設定。
type GuardConfig struct {
	Prefixes []string
	// Forbidden はDENY_WRONG_DOMAIN時に403ページを描画するハンドラー。
	// nilの場合は素の403レスポンスを返す。
	Forbidden http.Handler
	Recorder  DecisionRecorder
}

// NewGuardMiddleware はページレンダリングの前にルートガードを適用するミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
//
//	PASS / ALLOW       → 次のハンドラーへ
//	DENY_NO_AUTH       → / へ307リダイレクト
//	DENY_WRONG_DOMAIN  → 403（リダイレクトしない）
func NewGuardMiddleware(config GuardConfig) func(next http.Handler) http.Handler {
	guard := NewGuard(config.Prefixes)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Evaluate(r.URL.Path, SessionFromContext(r.Context()))
			if config.Recorder != nil {
				config.Recorder.RecordGuardDecision(string(decision))
			}

			switch decision {
			case DecisionDenyNoAuth:
				http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			case DecisionDenyWrongDomain:
				writeForbidden(w, r, config.Forbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireSignedIn はページ単位のガード。サインインしていない場合は / へリダイレクトする。
// ドメイン判定も保護接頭辞と同じポリシーで行う。
func RequireSignedIn(forbidden http.Handler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch check(SessionFromContext(r.Context())) {
			case DecisionDenyNoAuth:
				http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			case DecisionDenyWrongDomain:
				writeForbidden(w, r, forbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeForbidden(w http.ResponseWriter, r *http.Request, forbidden http.Handler) {
	if forbidden != nil {
		forbidden.ServeHTTP(w, r)
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}
