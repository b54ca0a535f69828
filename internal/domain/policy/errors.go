package policy

import (
	"fmt"
	"time"
)

// UnknownServiceError はポリシーに定義されていないサービスキーを表す
type UnknownServiceError struct {
	Service ServiceKey
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("サービス %q はポリシーに定義されていません", e.Service)
}

// ServiceNotFoundError は開始時刻を含むサービスが存在しないことを表す
type ServiceNotFoundError struct {
	Attempted time.Time
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("開始時刻 %s を含むサービスウィンドウがありません", e.Attempted.Format(time.RFC3339))
}

// ServiceOverrunError は予約がサービス終了時刻を越えることを表す
type ServiceOverrunError struct {
	Service      ServiceKey
	AttemptedEnd time.Time
	ServiceEnd   time.Time
}

func (e *ServiceOverrunError) Error() string {
	return fmt.Sprintf("予約が %s サービスの終了時刻 %s を越えています",
		e.Service, e.ServiceEnd.Format("15:04"))
}

// InputError は呼び出し側の不正な入力を表す
type InputError struct {
	Message string
	Code    string
}

func (e *InputError) Error() string {
	return e.Message
}
