package hold

import (
	"errors"
	"fmt"
	"strings"
)

// Hold ドメインのエラー定義
var (
	ErrRestaurantIDRequired = errors.New("レストランIDは必須です")
	ErrTableSetEmpty        = errors.New("テーブル集合が空です")
	ErrInvalidWindow        = errors.New("占有ウィンドウが不正です")
	ErrRateLimitExceeded    = errors.New("ホールド作成のレート制限を超過しました")
	ErrNotAuthorized        = errors.New("このホールドを操作する権限がありません")
)

// ConflictError は既存ホールドとの競合を表す
type ConflictError struct {
	TableIDs        []string
	ConflictingIDs  []string
	BlockingBooking *string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("テーブル %s は既存のホールドと競合しています",
		strings.Join(e.TableIDs, ", "))
}

// NotFoundError はホールドが存在しないことを表す
type NotFoundError struct {
	HoldID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ホールド %s が見つかりません", e.HoldID)
}
