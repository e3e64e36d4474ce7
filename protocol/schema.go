package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gateserver/models"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
)

// ClientMessage は検証済みの受信メッセージ。Join か Log のどちらか一方だけが設定される
type ClientMessage struct {
	Type string
	Join *models.JoinMessage
	Log  *models.LogMessage
}

type envelope struct {
	Type string `json:"type"`
}

var validate = newValidator()

// newValidator はエラーメッセージにjsonタグ名を使うバリデータを作る
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator は共有のスキーマバリデータを返す
func Validator() *validator.Validate {
	return validate
}

// DecodeClientMessage は生のフレームをデコードし、閉じたメッセージ集合に対して検証します。
// 失敗した場合は下流に何も渡さない
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case models.MessageTypeJoin:
		var msg models.JoinMessage
		if err := decodeAndValidate(raw, &msg); err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: env.Type, Join: &msg}, nil
	case models.MessageTypeLog:
		var msg models.LogMessage
		if err := decodeAndValidate(raw, &msg); err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: env.Type, Log: &msg}, nil
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

func decodeAndValidate(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}
