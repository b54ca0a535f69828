// Package hold はテーブルの短期ソフトロック（ホールド）を提供する
package hold

import "time"

// Hold はテーブル集合に対する短期ソフトロックを表す
// チェックアウト完了までの間、候補プランを仮押さえするために使う
type Hold struct {
	ID           string
	BookingID    *string // 投機的ホールドではnil
	RestaurantID string
	ZoneID       string
	TableIDs     []string
	StartAt      time.Time
	EndAt        time.Time
	ExpiresAt    time.Time
	CreatedBy    *string
	Metadata     map[string]string
	CreatedAt    time.Time
}

// Validate はホールドの検証を行う
func (h *Hold) Validate() error {
	if h.RestaurantID == "" {
		return ErrRestaurantIDRequired
	}
	if len(h.TableIDs) == 0 {
		return ErrTableSetEmpty
	}
	if !h.EndAt.After(h.StartAt) {
		return ErrInvalidWindow
	}
	return nil
}

// IsExpired はホールドが期限切れかを返す
func (h *Hold) IsExpired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// OverlapsWindow は半開区間 [startAt, endAt) がホールドの占有ウィンドウと重なるかを返す
func (h *Hold) OverlapsWindow(startAt, endAt time.Time) bool {
	return Overlaps(h.StartAt, h.EndAt, startAt, endAt)
}

// SharesTable は指定テーブル集合と共有テーブルがあるかを返す
func (h *Hold) SharesTable(tableIDs []string) bool {
	for _, mine := range h.TableIDs {
		for _, theirs := range tableIDs {
			if mine == theirs {
				return true
			}
		}
	}
	return false
}

// ConflictsWith は別の予約による同一テーブル・重複ウィンドウのホールドかを返す
// 同じ予約IDを共有するホールド同士は競合しない
func (h *Hold) ConflictsWith(bookingID *string, tableIDs []string, startAt, endAt time.Time) bool {
	if h.BookingID != nil && bookingID != nil && *h.BookingID == *bookingID {
		return false
	}
	return h.SharesTable(tableIDs) && h.OverlapsWindow(startAt, endAt)
}

// Overlaps は2つの半開区間 [aStart,aEnd) と [bStart,bEnd) が重なるかを返す
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
