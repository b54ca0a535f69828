package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 火曜のディナー帯。デフォルトポリシーのディナー(17:00-22:00)に収まる
var e2eDinnerStart = time.Date(2026, 3, 17, 19, 0, 0, 0, time.UTC)

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	server := getTestServer(t)

	rec := server.Request("GET", "/api/v1/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

// TestE2E_QuoteHoldConfirmFlow は見積もり→ホールド→確定の一連の流れをテスト
func TestE2E_QuoteHoldConfirmFlow(t *testing.T) {
	server := getTestServer(t)
	seedVenue(t)
	seedBooking(t, "booking-e2e-1", 2, e2eDinnerStart)

	var holdID string
	var tableIDs []interface{}

	// 1. 見積もりとホールド作成
	t.Run("見積もりでベストプランとホールドを得る", func(t *testing.T) {
		rec := server.Request("POST", "/api/v1/bookings/booking-e2e-1/quote",
			map[string]interface{}{"create_hold": true, "hold_ttl_seconds": 120}, nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		best, ok := resp["best_plan"].(map[string]interface{})
		require.True(t, ok, "best_plan がありません")
		tableIDs, ok = best["table_ids"].([]interface{})
		require.True(t, ok)
		require.NotEmpty(t, tableIDs)

		hold, ok := resp["hold"].(map[string]interface{})
		require.True(t, ok, "hold がありません")
		holdID, _ = hold["id"].(string)
		require.NotEmpty(t, holdID)
	})

	// 2. ホールドを確定コミット
	t.Run("ホールドを確定して全テーブルが割り当てられる", func(t *testing.T) {
		rec := server.Request("POST", "/api/v1/holds/"+holdID+"/confirm",
			map[string]interface{}{"booking_id": "booking-e2e-1"}, nil)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assignments, ok := resp["assignments"].([]interface{})
		require.True(t, ok)
		assert.Len(t, assignments, len(tableIDs))
		assert.NotEmpty(t, resp["merge_group_id"])
	})

	// 3. 同じテーブル・重複ウィンドウの別予約は409
	t.Run("重複ウィンドウのコミットは競合になる", func(t *testing.T) {
		seedBooking(t, "booking-e2e-2", 2, e2eDinnerStart.Add(30*time.Minute))

		ids := make([]string, 0, len(tableIDs))
		for _, id := range tableIDs {
			ids = append(ids, id.(string))
		}

		rec := server.Request("POST", "/api/v1/assignments", map[string]interface{}{
			"booking_id": "booking-e2e-2",
			"table_ids":  ids,
			"start_at":   e2eDinnerStart.Add(30 * time.Minute).Format(time.RFC3339),
			"end_at":     e2eDinnerStart.Add(90 * time.Minute).Format(time.RFC3339),
		}, nil)

		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})
}

// TestE2E_IdempotentCommit は同一キーでの再コミットが同じ結果を返すことをテスト
func TestE2E_IdempotentCommit(t *testing.T) {
	server := getTestServer(t)
	seedVenue(t)
	seedBooking(t, "booking-e2e-3", 4, e2eDinnerStart)

	body := map[string]interface{}{
		"booking_id":      "booking-e2e-3",
		"table_ids":       []string{"t-3"},
		"start_at":        e2eDinnerStart.Format(time.RFC3339),
		"end_at":          e2eDinnerStart.Add(80 * time.Minute).Format(time.RFC3339),
		"idempotency_key": "e2e-idem-1",
	}

	first := server.Request("POST", "/api/v1/assignments", body, nil)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := server.Request("POST", "/api/v1/assignments", body, nil)
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	var firstResp, secondResp map[string]interface{}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))

	assert.Equal(t, firstResp["merge_group_id"], secondResp["merge_group_id"])

	// 行が増えていないこと
	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM assignments WHERE booking_id = 'booking-e2e-3'`))
	assert.Equal(t, 1, count)
}

// TestE2E_HoldRelease はホールドの競合と解放をテスト
func TestE2E_HoldRelease(t *testing.T) {
	server := getTestServer(t)
	seedVenue(t)

	var holdID string

	rec := server.Request("POST", "/api/v1/holds", map[string]interface{}{
		"restaurant_id": "r-e2e",
		"table_ids":     []string{"t-1"},
		"start_at":      e2eDinnerStart.Format(time.RFC3339),
		"end_at":        e2eDinnerStart.Add(60 * time.Minute).Format(time.RFC3339),
		"ttl_seconds":   60,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	holdID, _ = resp["id"].(string)
	require.NotEmpty(t, holdID)

	// 同じテーブルへの二重ホールドは409
	dup := server.Request("POST", "/api/v1/holds", map[string]interface{}{
		"restaurant_id": "r-e2e",
		"table_ids":     []string{"t-1"},
		"start_at":      e2eDinnerStart.Format(time.RFC3339),
		"end_at":        e2eDinnerStart.Add(60 * time.Minute).Format(time.RFC3339),
	}, nil)
	assert.Equal(t, http.StatusConflict, dup.Code, dup.Body.String())

	// 解放後は再ホールドできる
	del := server.Request("DELETE", "/api/v1/holds/"+holdID, nil, nil)
	require.Equal(t, http.StatusNoContent, del.Code)

	again := server.Request("POST", "/api/v1/holds", map[string]interface{}{
		"restaurant_id": "r-e2e",
		"table_ids":     []string{"t-1"},
		"start_at":      e2eDinnerStart.Format(time.RFC3339),
		"end_at":        e2eDinnerStart.Add(60 * time.Minute).Format(time.RFC3339),
	}, nil)
	assert.Equal(t, http.StatusCreated, again.Code, again.Body.String())
}
