package table

import "errors"

// Table ドメインのエラー定義
var (
	ErrTableNotFound        = errors.New("テーブルが見つかりません")
	ErrRestaurantIDRequired = errors.New("レストランIDは必須です")
	ErrTableNumberRequired  = errors.New("テーブル番号は必須です")
	ErrInvalidCapacity      = errors.New("収容人数は1以上である必要があります")
)
