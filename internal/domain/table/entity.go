package table

import "time"

// Mobility はテーブルの可動性を表す
type Mobility string

const (
	MobilityMovable Mobility = "movable"
	MobilityFixed   Mobility = "fixed"
)

// Table はテーブルエンティティを表す
// プランニング中は不変のスナップショットとして扱う
type Table struct {
	ID           string
	RestaurantID string
	Number       string
	Capacity     int
	MinPartySize *int
	MaxPartySize *int
	ZoneID       string
	Mobility     Mobility
	Category     string
	SeatingType  string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTable は新しいテーブルを作成する
func NewTable(restaurantID, number string, capacity int, zoneID string) *Table {
	now := time.Now()
	return &Table{
		RestaurantID: restaurantID,
		Number:       number,
		Capacity:     capacity,
		ZoneID:       zoneID,
		Mobility:     MobilityFixed,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// FitsPartySize はパーティーサイズが単体で収容可能かを返す
func (t *Table) FitsPartySize(partySize int) bool {
	if !t.Active {
		return false
	}
	if t.Capacity < partySize {
		return false
	}
	if t.MinPartySize != nil && partySize < *t.MinPartySize {
		return false
	}
	if t.MaxPartySize != nil && partySize > *t.MaxPartySize {
		return false
	}
	return true
}

// Validate はテーブルの検証を行う
func (t *Table) Validate() error {
	if t.RestaurantID == "" {
		return ErrRestaurantIDRequired
	}
	if t.Number == "" {
		return ErrTableNumberRequired
	}
	if t.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// FilterOptions は空きテーブル抽出時の条件を表す
// 組み合わせ探索では単体で収容できないテーブルも候補に含めるため、
// 容量・最小人数の制約を個別に緩和できる
type FilterOptions struct {
	PartySize int
	ZoneID    string
	// AllowPartialCapacity が真の場合、単体で partySize に満たないテーブルも残す
	AllowPartialCapacity bool
	// AllowMinPartyViolation が真の場合、最小人数制約を無視する
	AllowMinPartyViolation bool
}

// FilterAvailable は条件を満たすテーブルのみを返す
func FilterAvailable(tables []*Table, opts FilterOptions) []*Table {
	result := make([]*Table, 0, len(tables))
	for _, t := range tables {
		if !t.Active {
			continue
		}
		if opts.ZoneID != "" && t.ZoneID != opts.ZoneID {
			continue
		}
		if !opts.AllowPartialCapacity && t.Capacity < opts.PartySize {
			continue
		}
		if !opts.AllowMinPartyViolation && t.MinPartySize != nil && opts.PartySize < *t.MinPartySize {
			continue
		}
		if t.MaxPartySize != nil && opts.PartySize > *t.MaxPartySize {
			continue
		}
		result = append(result, t)
	}
	return result
}
