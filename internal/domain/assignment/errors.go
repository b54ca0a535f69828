package assignment

import (
	"errors"
	"fmt"
	"strings"
)

// Assignment ドメインのエラー定義
var (
	ErrBookingIDRequired = errors.New("予約IDは必須です")
	ErrTableSetEmpty     = errors.New("テーブル集合が空です")
	ErrInvalidWindow     = errors.New("占有ウィンドウが不正です")
)

// ConflictError はコミットが競合で拒否されたことを表す
// 呼び出し側は同じプランを再試行せず、セレクタから再プランニングする
type ConflictError struct {
	TableIDs        []string
	BlockingBooking *string
	Cause           error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("テーブル %s のアサインが競合しました", strings.Join(e.TableIDs, ", "))
	if e.BlockingBooking != nil {
		msg += fmt.Sprintf("（予約 %s がブロック中）", *e.BlockingBooking)
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return e.Cause }

// ValidationError はプランがコミット時点で構造的に不正だったことを表す
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "アサインプランの検証に失敗しました"
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// RepositoryError はインフラ障害を表す
// 冪等性キーにより同一コミットの再試行は安全
type RepositoryError struct {
	Cause error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("アサインの永続化に失敗しました: %v", e.Cause)
}

func (e *RepositoryError) Unwrap() error { return e.Cause }
