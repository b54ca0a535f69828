package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
)

type assignmentRow struct {
	ID           string    `db:"id"`
	BookingID    string    `db:"booking_id"`
	TableID      string    `db:"table_id"`
	MergeGroupID string    `db:"merge_group_id"`
	StartAt      time.Time `db:"start_at"`
	EndAt        time.Time `db:"end_at"`
	AssignedBy   *string   `db:"assigned_by"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *assignmentRow) toRecord() *assignment.Record {
	return &assignment.Record{
		ID: r.ID, BookingID: r.BookingID, TableID: r.TableID,
		MergeGroupID: r.MergeGroupID, StartAt: r.StartAt, EndAt: r.EndAt,
		AssignedBy: r.AssignedBy, CreatedAt: r.CreatedAt,
	}
}

// AtomicCommitter はDB内のストアド関数でプランを全か無かでコミットする
//
// 関数 assign_tables_atomic は1トランザクションで
//   - 冪等性キーによる既存コミットの検出（同一キーなら既存行を返す）
//   - 対象テーブルの行ロックと重複ウィンドウの排他検査
//   - 全テーブル分のアサイン行の挿入
//
// を行い、途中で失敗した場合は何も残さない
type AtomicCommitter struct{ db *sqlx.DB }

var _ assignment.Committer = (*AtomicCommitter)(nil)

func NewAtomicCommitter(db *sqlx.DB) *AtomicCommitter {
	return &AtomicCommitter{db: db}
}

func (c *AtomicCommitter) Commit(ctx context.Context, args assignment.CommitArgs) ([]*assignment.Record, error) {
	query := `SELECT id, booking_id, table_id, merge_group_id, start_at, end_at, assigned_by, created_at
		FROM assign_tables_atomic($1, $2, $3, $4, $5, $6, $7)`

	var rows []assignmentRow
	err := c.db.SelectContext(ctx, &rows, query,
		args.BookingID,
		pq.Array(args.TableIDs),
		args.StartAt,
		args.EndAt,
		args.IdempotencyKey,
		args.RequireAdjacency,
		args.ActorID,
	)
	if err != nil {
		return nil, translateCommitError(err, args)
	}

	records := make([]*assignment.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return records, nil
}

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// translateCommitError はPostgreSQLのエラーをドメインの型付きエラーへ変換する
func translateCommitError(err error, args assignment.CommitArgs) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return &assignment.RepositoryError{Cause: err}
	}

	message := strings.ToLower(pqErr.Message)
	switch {
	case pqErr.Code == "23505",
		pqErr.Code == "P0001" && (strings.Contains(message, "conflict") ||
			strings.Contains(message, "overlap") ||
			strings.Contains(message, "duplicate")):
		conflict := &assignment.ConflictError{TableIDs: args.TableIDs, Cause: err}
		if blocking := uuidPattern.FindString(message); blocking != "" && blocking != strings.ToLower(args.BookingID) {
			conflict.BlockingBooking = &blocking
		}
		return conflict
	case pqErr.Code == "23514", pqErr.Code == "23503", pqErr.Code == "23502",
		pqErr.Code == "22023", pqErr.Code == "22000",
		pqErr.Code == "P0002", pqErr.Code == "P0003",
		pqErr.Code == "P0001" && strings.Contains(message, "invalid"):
		return &assignment.ValidationError{Message: pqErr.Message, Cause: err}
	default:
		return &assignment.RepositoryError{Cause: fmt.Errorf("アサインコミットに失敗: %w", err)}
	}
}
