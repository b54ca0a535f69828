package event

import (
	"context"

	"go.uber.org/zap"

	domainevent "github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

// LogEmitter は構造化ログへイベントを書き出すエミッター
// ブローカーが無い環境（開発・テスト）でのフォールバックとして使う
type LogEmitter struct{}

var _ domainevent.Emitter = (*LogEmitter)(nil)

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{}
}

func (e *LogEmitter) Emit(_ context.Context, eventType string, payload map[string]any) {
	logger.Info("ドメインイベント",
		zap.String("event_type", eventType),
		zap.Any("payload", payload),
	)
}
