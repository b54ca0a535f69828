package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
)

func testPlan() *assignment.Plan {
	return assignment.NewPlan(
		"booking-1",
		[]string{"t-2", "t-1"},
		time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC),
	)
}

func testRecords(mergeGroupID string) []*assignment.Record {
	return []*assignment.Record{
		{ID: "a-1", BookingID: "booking-1", TableID: "t-1", MergeGroupID: mergeGroupID},
		{ID: "a-2", BookingID: "booking-1", TableID: "t-2", MergeGroupID: mergeGroupID},
	}
}

func TestAssignmentService_CommitPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: プランをコミットできる", func(t *testing.T) {
		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.AnythingOfType("assignment.CommitArgs")).
			Return(testRecords("mg-1"), nil)

		emitter := new(MockEmitter)
		emitter.On("Emit", ctx, event.TypeAssignmentCommit, mock.Anything).Return()

		svc := NewAssignmentService(committer, nil, emitter, "")

		result, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{})
		require.NoError(t, err)
		assert.Equal(t, "mg-1", result.MergeGroupID)
		assert.Len(t, result.Assignments, 2)
		assert.False(t, result.Shadow)
		committer.AssertExpectations(t)
		emitter.AssertExpectations(t)
	})

	t.Run("冪等性キー未指定の場合はプランのシグネチャを使う", func(t *testing.T) {
		plan := testPlan()
		expectedKey := plan.Signature("salt-1")

		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.MatchedBy(func(args assignment.CommitArgs) bool {
			return args.IdempotencyKey == expectedKey
		})).Return(testRecords("mg-1"), nil)

		svc := NewAssignmentService(committer, nil, nil, "salt-1")

		_, err := svc.CommitPlan(ctx, plan, CommitOptions{})
		require.NoError(t, err)
		committer.AssertExpectations(t)
	})

	t.Run("明示的な冪等性キーはそのまま使う", func(t *testing.T) {
		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.MatchedBy(func(args assignment.CommitArgs) bool {
			return args.IdempotencyKey == "client-key-9"
		})).Return(testRecords("mg-1"), nil)

		svc := NewAssignmentService(committer, nil, nil, "salt-1")

		_, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{IdempotencyKey: "client-key-9"})
		require.NoError(t, err)
		committer.AssertExpectations(t)
	})

	t.Run("シャドーモードでは永続化せず同じ経路を通す", func(t *testing.T) {
		committer := new(MockCommitter)

		emitter := new(MockEmitter)
		emitter.On("Emit", ctx, event.TypeAssignmentShadow, mock.Anything).Return()

		svc := NewAssignmentService(committer, nil, emitter, "")

		result, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{Shadow: true})
		require.NoError(t, err)
		assert.True(t, result.Shadow)
		assert.Len(t, result.Assignments, 2)
		committer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
		emitter.AssertExpectations(t)
	})

	t.Run("コミット成功後にホールドを削除する", func(t *testing.T) {
		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.AnythingOfType("assignment.CommitArgs")).
			Return(testRecords("mg-1"), nil)

		holds := new(MockHoldRepository)
		holds.On("Delete", ctx, "hold-1").Return(nil)

		svc := NewAssignmentService(committer, holds, nil, "")

		_, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{HoldID: "hold-1"})
		require.NoError(t, err)
		holds.AssertExpectations(t)
	})

	t.Run("ホールド削除失敗はコミット成功に影響しない", func(t *testing.T) {
		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.AnythingOfType("assignment.CommitArgs")).
			Return(testRecords("mg-1"), nil)

		holds := new(MockHoldRepository)
		holds.On("Delete", ctx, "hold-1").Return(errors.New("redis down"))

		svc := NewAssignmentService(committer, holds, nil, "")

		result, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{HoldID: "hold-1"})
		require.NoError(t, err)
		assert.Equal(t, "mg-1", result.MergeGroupID)
	})

	t.Run("競合エラーは型を保ったまま返す", func(t *testing.T) {
		blocking := "booking-other"
		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.AnythingOfType("assignment.CommitArgs")).
			Return(nil, &assignment.ConflictError{TableIDs: []string{"t-1"}, BlockingBooking: &blocking})

		emitter := new(MockEmitter)
		emitter.On("Emit", ctx, event.TypeAssignmentConflict, mock.Anything).Return()

		svc := NewAssignmentService(committer, nil, emitter, "")

		_, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{})
		var conflictErr *assignment.ConflictError
		require.ErrorAs(t, err, &conflictErr)
		require.NotNil(t, conflictErr.BlockingBooking)
		assert.Equal(t, "booking-other", *conflictErr.BlockingBooking)
		emitter.AssertExpectations(t)
	})

	t.Run("未知のエラーはRepositoryErrorに包む", func(t *testing.T) {
		cause := errors.New("connection reset")
		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.AnythingOfType("assignment.CommitArgs")).
			Return(nil, cause)

		svc := NewAssignmentService(committer, nil, nil, "")

		_, err := svc.CommitPlan(ctx, testPlan(), CommitOptions{})
		var repoErr *assignment.RepositoryError
		require.ErrorAs(t, err, &repoErr)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("不正なプランはコミットせずValidationErrorを返す", func(t *testing.T) {
		committer := new(MockCommitter)
		svc := NewAssignmentService(committer, nil, nil, "")

		plan := assignment.NewPlan("booking-1", nil,
			time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC))

		_, err := svc.CommitPlan(ctx, plan, CommitOptions{})
		var validationErr *assignment.ValidationError
		require.ErrorAs(t, err, &validationErr)
		committer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	})
}

func TestAssignmentService_ConfirmHold(t *testing.T) {
	ctx := context.Background()
	bookingID := "booking-1"
	startAt := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	endAt := time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)

	t.Run("正常系: ホールドをそのまま確定できる", func(t *testing.T) {
		h := &hold.Hold{
			ID: "hold-1", BookingID: &bookingID, RestaurantID: "rest-1",
			TableIDs: []string{"t-1", "t-2"}, StartAt: startAt, EndAt: endAt,
		}
		holds := new(MockHoldRepository)
		holds.On("GetByID", ctx, "hold-1").Return(h, nil)
		holds.On("Delete", ctx, "hold-1").Return(nil)

		committer := new(MockCommitter)
		committer.On("Commit", ctx, mock.MatchedBy(func(args assignment.CommitArgs) bool {
			return args.BookingID == bookingID &&
				len(args.TableIDs) == 2 &&
				args.StartAt.Equal(startAt) && args.EndAt.Equal(endAt)
		})).Return(testRecords("mg-1"), nil)

		svc := NewAssignmentService(committer, holds, nil, "")

		result, err := svc.ConfirmHold(ctx, "hold-1", bookingID, CommitOptions{})
		require.NoError(t, err)
		assert.Equal(t, "mg-1", result.MergeGroupID)
		holds.AssertExpectations(t)
		committer.AssertExpectations(t)
	})

	t.Run("別予約のホールドは確定できない", func(t *testing.T) {
		other := "booking-other"
		h := &hold.Hold{ID: "hold-1", BookingID: &other, TableIDs: []string{"t-1"}, StartAt: startAt, EndAt: endAt}
		holds := new(MockHoldRepository)
		holds.On("GetByID", ctx, "hold-1").Return(h, nil)

		committer := new(MockCommitter)
		svc := NewAssignmentService(committer, holds, nil, "")

		_, err := svc.ConfirmHold(ctx, "hold-1", bookingID, CommitOptions{})
		var validationErr *assignment.ValidationError
		require.ErrorAs(t, err, &validationErr)
		committer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	})

	t.Run("存在しないホールドはNotFoundErrorを返す", func(t *testing.T) {
		holds := new(MockHoldRepository)
		holds.On("GetByID", ctx, "hold-missing").Return(nil, &hold.NotFoundError{HoldID: "hold-missing"})

		svc := NewAssignmentService(new(MockCommitter), holds, nil, "")

		_, err := svc.ConfirmHold(ctx, "hold-missing", bookingID, CommitOptions{})
		var notFound *hold.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}
