// Package assignment はテーブルアサインの確定（コミット）を提供する
package assignment

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Plan は確定対象のテーブルアサインプランを表す
// TableIDs は常にソート・重複排除された状態で保持する
type Plan struct {
	BookingID string
	TableIDs  []string
	StartAt   time.Time
	EndAt     time.Time
}

// NewPlan はテーブルIDを正規化してプランを作成する
func NewPlan(bookingID string, tableIDs []string, startAt, endAt time.Time) *Plan {
	return &Plan{
		BookingID: bookingID,
		TableIDs:  NormalizeTableIDs(tableIDs),
		StartAt:   startAt,
		EndAt:     endAt,
	}
}

// Validate はプランの検証を行う
func (p *Plan) Validate() error {
	if p.BookingID == "" {
		return ErrBookingIDRequired
	}
	if len(p.TableIDs) == 0 {
		return ErrTableSetEmpty
	}
	if !p.EndAt.After(p.StartAt) {
		return ErrInvalidWindow
	}
	return nil
}

// Signature は予約ID・ソート済みテーブルID・ウィンドウから決定的な
// 冪等性キーを導出する。salt はデプロイ単位でキー空間を分離するための任意値
func (p *Plan) Signature(salt string) string {
	parts := []string{
		p.BookingID,
		strings.Join(p.TableIDs, "+"),
		p.StartAt.UTC().Format(time.RFC3339),
		p.EndAt.UTC().Format(time.RFC3339),
	}
	if salt != "" {
		parts = append(parts, salt)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// NormalizeTableIDs はテーブルIDをソートし重複を取り除く
func NormalizeTableIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Record は確定済みのテーブルアサインを表す
type Record struct {
	ID           string
	BookingID    string
	TableID      string
	MergeGroupID string
	StartAt      time.Time
	EndAt        time.Time
	AssignedBy   *string
	CreatedAt    time.Time
}

// Result はコミット結果を表す
type Result struct {
	Assignments  []*Record
	MergeGroupID string
	// Shadow はシャドーモードで実行され永続化されなかったことを示す
	Shadow bool
}
