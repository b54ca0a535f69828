package policy

import (
	"time"
)

// ResolveWindowArgs はウィンドウ解決の入力を表す
// StartAt か (BookingDate, StartTime) のどちらかを指定する
type ResolveWindowArgs struct {
	StartAt     time.Time
	BookingDate string // "2006-01-02"
	StartTime   string // "15:04"
	PartySize   int
	ServiceHint ServiceKey
}

// WindowWithFallback はフォールバック解決の結果を表す
type WindowWithFallback struct {
	Window          *BookingWindow
	UsedFallback    bool
	FallbackService ServiceKey
}

// ResolveWindow は開始時刻とパーティーサイズから予約ウィンドウを解決する
//
// ブロック終了がサービス終了を越える場合はサービス終了まで切り詰め、
// 切り詰めで食事時間が消滅する場合のみ ServiceOverrunError を返す
func (p *VenuePolicy) ResolveWindow(args ResolveWindowArgs) (*BookingWindow, error) {
	start, err := p.resolveStart(args)
	if err != nil {
		return nil, err
	}

	service := args.ServiceHint
	if service == "" {
		service = p.WhichService(start)
		if service == "" {
			return nil, &ServiceNotFoundError{Attempted: start}
		}
	}
	svc, ok := p.Services[service]
	if !ok || svc == nil {
		return nil, &UnknownServiceError{Service: service}
	}

	band, err := p.TurnBandFor(service, args.PartySize)
	if err != nil {
		return nil, err
	}

	diningStart := start
	diningEnd := diningStart.Add(time.Duration(band.DurationMinutes) * time.Minute)
	blockStart := diningStart.Add(-time.Duration(svc.Buffer.Pre) * time.Minute)
	blockEnd := diningEnd.Add(time.Duration(svc.Buffer.Post) * time.Minute)
	clamped := false

	window, err := p.ServiceWindowFor(service, diningStart)
	if err != nil {
		return nil, err
	}
	if !svc.AllowOverrun && blockEnd.After(window.End) {
		blockEnd = window.End
		diningEnd = blockEnd.Add(-time.Duration(svc.Buffer.Post) * time.Minute)
		if !diningEnd.After(diningStart) {
			return nil, &ServiceOverrunError{Service: service, AttemptedEnd: blockEnd, ServiceEnd: window.End}
		}
		clamped = true
	}

	durationMinutes := int(diningEnd.Sub(diningStart).Round(time.Minute) / time.Minute)
	if durationMinutes < 1 {
		durationMinutes = 1
	}

	return &BookingWindow{
		Service:             service,
		DurationMinutes:     durationMinutes,
		DiningStart:         diningStart,
		DiningEnd:           diningEnd,
		BlockStart:          blockStart,
		BlockEnd:            blockEnd,
		ClampedToServiceEnd: clamped,
	}, nil
}

// ResolveWindowWithFallback はサービスが見つからない場合に
// ポリシー順の先頭サービスへフォールバックして解決する
// failHard が真の場合はフォールバックせず元のエラーを返す
func (p *VenuePolicy) ResolveWindowWithFallback(args ResolveWindowArgs, failHard bool) (*WindowWithFallback, error) {
	window, err := p.ResolveWindow(args)
	if err == nil {
		return &WindowWithFallback{Window: window}, nil
	}

	if _, ok := err.(*ServiceNotFoundError); !ok {
		return nil, err
	}
	if failHard {
		return nil, err
	}

	fallback := args.ServiceHint
	if fallback == "" || p.Services[fallback] == nil {
		fallback = ""
		for _, key := range p.ServiceOrder {
			if p.Services[key] != nil {
				fallback = key
				break
			}
		}
	}
	if fallback == "" {
		return nil, err
	}

	args.ServiceHint = fallback
	fallbackWindow, fbErr := p.ResolveWindow(args)
	if fbErr != nil {
		return nil, fbErr
	}

	return &WindowWithFallback{
		Window:          fallbackWindow,
		UsedFallback:    true,
		FallbackService: fallback,
	}, nil
}

func (p *VenuePolicy) resolveStart(args ResolveWindowArgs) (time.Time, error) {
	loc := p.Location()
	if !args.StartAt.IsZero() {
		return args.StartAt.In(loc), nil
	}
	if args.BookingDate == "" || args.StartTime == "" {
		return time.Time{}, &InputError{Message: "予約日と開始時刻は必須です", Code: "START_TIME_REQUIRED"}
	}
	composed, err := time.ParseInLocation("2006-01-02T15:04", args.BookingDate+"T"+args.StartTime, loc)
	if err != nil {
		return time.Time{}, &InputError{Message: "予約日時の形式が不正です", Code: "INVALID_START"}
	}
	return composed, nil
}
