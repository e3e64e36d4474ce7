package gateway

import (
	"net"
	"net/http"
	"strings"
)

// ResolveOrigin はクライアントのアドレスを決める。
// X-Forwarded-For があれば最初のカンマ区切りトークン、なければソケットの接続元アドレス
func ResolveOrigin(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.SplitN(forwardedFor, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	return remoteAddr
}

// RequestOrigin は HTTP リクエストから ResolveOrigin を適用する。
// ヘッダが複数行ある場合は最初の行を使い、接続元はポートを除く
func RequestOrigin(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	return ResolveOrigin(r.Header.Get("X-Forwarded-For"), remote)
}
