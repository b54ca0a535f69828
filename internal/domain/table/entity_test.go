package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestNewTable(t *testing.T) {
	tbl := NewTable("rest-1", "T1", 4, "Z1")

	assert.Equal(t, "rest-1", tbl.RestaurantID)
	assert.Equal(t, "T1", tbl.Number)
	assert.Equal(t, 4, tbl.Capacity)
	assert.Equal(t, "Z1", tbl.ZoneID)
	assert.Equal(t, MobilityFixed, tbl.Mobility)
	assert.True(t, tbl.Active)
}

func TestTable_FitsPartySize(t *testing.T) {
	tests := []struct {
		name      string
		table     *Table
		partySize int
		expected  bool
	}{
		{"容量内", &Table{Capacity: 4, Active: true}, 4, true},
		{"容量超過", &Table{Capacity: 4, Active: true}, 5, false},
		{"非アクティブ", &Table{Capacity: 4, Active: false}, 2, false},
		{"最小人数未満", &Table{Capacity: 6, Active: true, MinPartySize: intPtr(4)}, 2, false},
		{"最大人数超過", &Table{Capacity: 8, Active: true, MaxPartySize: intPtr(6)}, 7, false},
		{"最小最大の範囲内", &Table{Capacity: 8, Active: true, MinPartySize: intPtr(2), MaxPartySize: intPtr(6)}, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.table.FitsPartySize(tt.partySize))
		})
	}
}

func TestTable_Validate(t *testing.T) {
	t.Run("有効なテーブル", func(t *testing.T) {
		assert.NoError(t, NewTable("rest-1", "T1", 4, "Z1").Validate())
	})

	t.Run("レストランIDなし", func(t *testing.T) {
		tbl := NewTable("", "T1", 4, "Z1")
		assert.ErrorIs(t, tbl.Validate(), ErrRestaurantIDRequired)
	})

	t.Run("容量0", func(t *testing.T) {
		tbl := NewTable("rest-1", "T1", 0, "Z1")
		assert.ErrorIs(t, tbl.Validate(), ErrInvalidCapacity)
	})
}

func TestFilterAvailable(t *testing.T) {
	tables := []*Table{
		{ID: "t1", Capacity: 4, ZoneID: "Z1", Active: true},
		{ID: "t2", Capacity: 2, ZoneID: "Z1", Active: true},
		{ID: "t3", Capacity: 6, ZoneID: "Z2", Active: true},
		{ID: "t4", Capacity: 8, ZoneID: "Z1", Active: false},
		{ID: "t5", Capacity: 6, ZoneID: "Z1", Active: true, MinPartySize: intPtr(5)},
	}

	t.Run("単体収容のみ", func(t *testing.T) {
		got := FilterAvailable(tables, FilterOptions{PartySize: 4})
		ids := idsOf(got)
		assert.Equal(t, []string{"t1", "t3"}, ids)
	})

	t.Run("部分容量を許可すると小さいテーブルも残る", func(t *testing.T) {
		got := FilterAvailable(tables, FilterOptions{PartySize: 4, AllowPartialCapacity: true})
		ids := idsOf(got)
		assert.Equal(t, []string{"t1", "t2", "t3"}, ids)
	})

	t.Run("最小人数制約の緩和", func(t *testing.T) {
		got := FilterAvailable(tables, FilterOptions{PartySize: 4, AllowMinPartyViolation: true})
		ids := idsOf(got)
		assert.Equal(t, []string{"t1", "t3", "t5"}, ids)
	})

	t.Run("ゾーン指定", func(t *testing.T) {
		got := FilterAvailable(tables, FilterOptions{PartySize: 4, ZoneID: "Z2"})
		ids := idsOf(got)
		assert.Equal(t, []string{"t3"}, ids)
	})

	t.Run("非アクティブは常に除外", func(t *testing.T) {
		got := FilterAvailable(tables, FilterOptions{PartySize: 2, AllowPartialCapacity: true, AllowMinPartyViolation: true})
		for _, tbl := range got {
			assert.NotEqual(t, "t4", tbl.ID)
		}
	})
}

func idsOf(tables []*Table) []string {
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	return ids
}
