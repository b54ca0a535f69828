package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound      = errors.New("予約が見つかりません")
	ErrRestaurantIDRequired = errors.New("レストランIDは必須です")
	ErrInvalidPartySize     = errors.New("パーティーサイズは1以上である必要があります")
)
