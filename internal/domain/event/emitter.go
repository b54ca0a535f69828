// Package event はドメインイベントの発行インターフェースを提供する
package event

import "context"

// イベント種別の定義
const (
	TypeHoldCreated       = "hold.created"
	TypeHoldExtended      = "hold.extended"
	TypeHoldReleased      = "hold.released"
	TypeHoldExpired       = "hold.expired"
	TypeHoldConflict      = "hold.conflict"
	TypeSelectorPlanned   = "selector.planned"
	TypeSelectorSkipped   = "selector.skipped"
	TypeAssignmentCommit  = "assignment.committed"
	TypeAssignmentConflict = "assignment.conflict"
	TypeAssignmentShadow  = "assignment.shadow"
)

// Emitter は一方向のイベント発行インターフェース
// 実装は発行失敗を内部でログに記録し、呼び出し元には決して伝播させない
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload map[string]any)
}
