package validations

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMinUsernameLength = 3
	DefaultMaxUsernameLength = 27
)

// UsernamePolicy はユーザー名の長さと使用可能文字の規則
type UsernamePolicy struct {
	MinLength int
	MaxLength int
	Allowed   func(r rune) bool // 差し替え可能な文字判定
}

// DefaultUsernamePolicy は英数字、空白、アンダースコア、角括弧、ü/Ü を許可する
func DefaultUsernamePolicy() UsernamePolicy {
	return UsernamePolicy{
		MinLength: DefaultMinUsernameLength,
		MaxLength: DefaultMaxUsernameLength,
		Allowed:   defaultAllowedRune,
	}
}

func defaultAllowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == ' ', r == '[', r == ']', r == 'ü', r == 'Ü':
		return true
	}
	return false
}

// ValidateUsername は長さと文字種を検査し、拒否した場合は理由を返します。
func (p UsernamePolicy) ValidateUsername(raw string) (bool, error) {
	if raw == "" {
		return false, fmt.Errorf("username is required")
	}
	username := norm.NFC.String(raw)
	length := utf8.RuneCountInString(username)
	if length < p.MinLength {
		return false, fmt.Errorf("username must be at least %d characters long", p.MinLength)
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return false, fmt.Errorf("username must not exceed %d characters", p.MaxLength)
	}
	if p.Allowed != nil {
		for _, r := range username {
			if !p.Allowed(r) {
				return false, fmt.Errorf("username contains invalid character %q", r)
			}
		}
	}
	return true, nil
}

// SanitizeUsername は許可されない文字を取り除き、空白を詰め、最大長で切り詰める。
// 出力に対して再度呼び出しても結果は変わらない
func (p UsernamePolicy) SanitizeUsername(raw string) string {
	username := p.sanitizeOnce(raw)
	// 除去後の再合成で新たに拒否される文字が現れることがある。変化しなくなるまで繰り返す。
	// 2回目以降は変化するたびに文字数が減るので必ず止まる
	for {
		next := p.sanitizeOnce(username)
		if next == username {
			return username
		}
		username = next
	}
}

func (p UsernamePolicy) sanitizeOnce(raw string) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(raw) {
		if p.Allowed != nil && !p.Allowed(r) {
			continue
		}
		b.WriteRune(r)
	}

	// 除去で隣り合った結合文字を合成し直す
	username := norm.NFC.String(b.String())

	// 連続する空白は1つにまとめる
	cleaned := strings.Join(strings.Fields(username), " ")
	if p.MaxLength > 0 && utf8.RuneCountInString(cleaned) > p.MaxLength {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:p.MaxLength]))
	}
	return cleaned
}
