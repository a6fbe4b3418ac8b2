package middleware

import (
	"net/http"
	"net/url"
)

// SessionReader はガード判定に必要なセッション状態の読み取りインターフェース。
// 実装はメモリ上のスナップショットのみを参照し、I/Oを行わないこと。
type SessionReader interface {
	IsAuthenticated() bool
	HasSubscription() bool
}

// GuardDecision はガード判定の結果。
type GuardDecision int

const (
	// GuardAllow はアクセスを許可する。
	GuardAllow GuardDecision = iota
	// GuardRedirectLogin は未認証のためログイン導線へリダイレクトする。
	GuardRedirectLogin
	// GuardRedirectPaywall は購読がないためペイウォールへリダイレクトする。
	GuardRedirectPaywall
)

// Authorize は認証・購読の要求に対するガード判定を返す純粋関数。
// 認証チェックは購読チェックより先に行う。
func Authorize(authenticated, subscribed, requireSubscription bool) GuardDecision {
	if !authenticated {
		return GuardRedirectLogin
	}
	if requireSubscription && !subscribed {
		return GuardRedirectPaywall
	}
	return GuardAllow
}

// Guard はセッション状態に基づいてルートを保護するミドルウェア群。
type Guard struct {
	session      SessionReader
	loginRoute   string
	paywallRoute string
}

// NewGuard はGuardを生成する。loginRouteは未認証時の、paywallRouteは
// 購読なし時のリダイレクト先。
func NewGuard(session SessionReader, loginRoute, paywallRoute string) *Guard {
	return &Guard{
		session:      session,
		loginRoute:   loginRoute,
		paywallRoute: paywallRoute,
	}
}

// RequireAuth は認証済みセッションを要求するミドルウェアを返す。
// 未認証の場合、元のパスをfromクエリに載せてログイン導線へ303を返す。
func (g *Guard) RequireAuth() func(next http.Handler) http.Handler {
	return g.middleware(false)
}

// RequireSubscription は認証済みかつ購読ありを要求するミドルウェアを返す。
// 判定はメモリ上のスナップショットのみで行い、リクエストごとのI/Oは発生しない。
func (g *Guard) RequireSubscription() func(next http.Handler) http.Handler {
	return g.middleware(true)
}

func (g *Guard) middleware(requireSubscription bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Authorize(
				g.session.IsAuthenticated(),
				g.session.HasSubscription(),
				requireSubscription,
			)

			switch decision {
			case GuardRedirectLogin:
				redirect(w, r, g.loginRoute)
			case GuardRedirectPaywall:
				redirect(w, r, g.paywallRoute)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// redirect は遷移元のパスをfromクエリで保持しつつ303を返す。
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	location := target + "?from=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, location, http.StatusSeeOther)
}
