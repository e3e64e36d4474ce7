package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gateserver/metrics"
	"gateserver/models"
	"gateserver/protocol"

	"go.uber.org/zap"
)

var (
	ErrRecordNotFound  = errors.New("game record not found")
	ErrInvalidRecord   = errors.New("invalid game record format")
	ErrDuplicateRecord = errors.New("game record already archived")
	ErrRecordInFlight  = errors.New("game record is being archived")
)

// Sink はゲーム記録の永続化先
type Sink interface {
	Archive(ctx context.Context, record *models.GameRecord) error
}

// ClaimResult は Guard.Claim の結果
type ClaimResult int

const (
	Claimed ClaimResult = iota
	// 永続化が完了している
	AlreadyArchived
	// 別のリクエストが永続化中
	InFlight
)

// Guard は同じ記録を二度永続化しないための排他。
// Claim で確保し、成功したら Complete、失敗したら Release する
type Guard interface {
	Claim(ctx context.Context, recordID string) (ClaimResult, error)
	Complete(ctx context.Context, recordID string) error
	Release(ctx context.Context, recordID string) error
}

// Intake はシングルプレイの記録を検証してから永続化先に渡す
type Intake struct {
	sink   Sink
	guard  Guard // nil なら重複検査をしない
	logger *zap.Logger
}

func NewIntake(sink Sink, guard Guard, logger *zap.Logger) *Intake {
	return &Intake{sink: sink, guard: guard, logger: logger}
}

// DecodeGameRecord はリクエストボディを記録として読む。ボディが空か null なら nil を返す
func DecodeGameRecord(body []byte) (*models.GameRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var record models.GameRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &record, nil
}

// Archive は全プレイヤーのIPを送信元で上書きし、スキーマ検証に通った記録だけを永続化する
func (i *Intake) Archive(ctx context.Context, record *models.GameRecord, origin string) error {
	if record == nil {
		metrics.ArchivedRecords.WithLabelValues("not_found").Inc()
		return ErrRecordNotFound
	}

	// 検証は複製に対して行い、失敗時に呼び出し元の記録を変えない
	stamped := *record
	stamped.Players = make([]models.PlayerRecord, len(record.Players))
	for idx, p := range record.Players {
		p.IP = origin
		stamped.Players[idx] = p
	}

	if err := protocol.Validator().Struct(&stamped); err != nil {
		metrics.ArchivedRecords.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if i.guard != nil {
		result, err := i.guard.Claim(ctx, stamped.ID)
		switch {
		case err != nil:
			// 重複検査ができなくても記録は受け付ける。DB側の一意制約が最後の砦
			i.logger.Warn("Failed to claim game record", zap.String("gameID", stamped.ID), zap.Error(err))
		case result == AlreadyArchived:
			metrics.ArchivedRecords.WithLabelValues("duplicate").Inc()
			return ErrDuplicateRecord
		case result == InFlight:
			// 先行リクエストが失敗すると記録が失われるので成功扱いにしない
			metrics.ArchivedRecords.WithLabelValues("in_flight").Inc()
			return ErrRecordInFlight
		}
	}

	if err := i.sink.Archive(ctx, &stamped); err != nil {
		metrics.ArchivedRecords.WithLabelValues("error").Inc()
		if i.guard != nil {
			if rerr := i.guard.Release(ctx, stamped.ID); rerr != nil {
				i.logger.Warn("Failed to release game record claim", zap.String("gameID", stamped.ID), zap.Error(rerr))
			}
		}
		return fmt.Errorf("archive game %s: %w", stamped.ID, err)
	}

	if i.guard != nil {
		if err := i.guard.Complete(ctx, stamped.ID); err != nil {
			i.logger.Warn("Failed to mark game record archived", zap.String("gameID", stamped.ID), zap.Error(err))
		}
	}

	metrics.ArchivedRecords.WithLabelValues("ok").Inc()
	i.logger.Info("Game record archived",
		zap.String("gameID", stamped.ID),
		zap.Int("players", len(stamped.Players)),
		zap.String("origin", origin),
	)
	return nil
}
