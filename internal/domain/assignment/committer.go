package assignment

import (
	"context"
	"time"
)

// CommitArgs はアトミックコミットの入力を表す
type CommitArgs struct {
	BookingID        string
	TableIDs         []string
	IdempotencyKey   string
	RequireAdjacency bool
	ActorID          *string
	StartAt          time.Time
	EndAt            time.Time
}

// Committer はアトミックコミットプリミティブのインターフェース
// 実装はトランザクショナルかつ全か無かで、重複ウィンドウのコミットを
// 決定的に拒否しなければならない
type Committer interface {
	Commit(ctx context.Context, args CommitArgs) ([]*Record, error)
}
