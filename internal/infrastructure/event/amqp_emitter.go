// Package event はドメインイベントの発行手段を提供する
package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/config"
	domainevent "github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

// envelope はキューに流すイベントの共通フォーマット
type envelope struct {
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// AMQPEmitter はRabbitMQへドメインイベントを発行する
//
// イベント発行は業務フローに対して常にベストエフォートで、
// 発行失敗は警告ログに留めて呼び出し元へは伝播させない
type AMQPEmitter struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

var _ domainevent.Emitter = (*AMQPEmitter)(nil)

// NewAMQPEmitter はブローカーへ接続しdurableキューを宣言する
func NewAMQPEmitter(cfg *config.AMQPConfig) (*AMQPEmitter, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPEmitter{conn: conn, ch: ch, queue: cfg.Queue}, nil
}

// Emit はイベントを永続化メッセージとして発行する
func (e *AMQPEmitter) Emit(ctx context.Context, eventType string, payload map[string]any) {
	body, err := json.Marshal(envelope{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		logger.Warn("イベントのシリアライズに失敗しました",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = e.ch.PublishWithContext(ctx,
		"",      // デフォルトエクスチェンジ
		e.queue, // ルーティングキー = キュー名
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		logger.Warn("イベント発行に失敗しました",
			zap.String("event_type", eventType), zap.Error(err))
	}
}

// Close は接続とチャネルを閉じる
func (e *AMQPEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ch.Close(); err != nil {
		return err
	}
	return e.conn.Close()
}
