// Package policy はサービスポリシーと予約ウィンドウの解決を提供する
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ServiceKey はサービス区分（ランチ/ディナー等）を表す
type ServiceKey string

const (
	ServiceLunch  ServiceKey = "lunch"
	ServiceDinner ServiceKey = "dinner"
	ServiceDrinks ServiceKey = "drinks"
)

// TimeOfDay は時刻（時・分）を表す
type TimeOfDay struct {
	Hour   int
	Minute int
}

// BufferConfig は食事時間の前後バッファ（分）を表す
type BufferConfig struct {
	Pre  int
	Post int
}

// TurnBand はパーティーサイズごとの滞在時間帯を表す
// 先頭から順に maxPartySize を満たす最初のバンドが採用され、最後のバンドがキャッチオールになる
type TurnBand struct {
	MaxPartySize    int
	DurationMinutes int
}

// ServiceDefinition はサービスの営業時間・バッファ・ターンバンドを表す
type ServiceDefinition struct {
	Key          ServiceKey
	Label        string
	Start        TimeOfDay
	End          TimeOfDay
	Buffer       BufferConfig
	TurnBands    []TurnBand
	AllowOverrun bool
}

// VenuePolicy は店舗のサービスポリシー全体を表す
type VenuePolicy struct {
	Timezone     string
	ServiceOrder []ServiceKey
	Services     map[ServiceKey]*ServiceDefinition
}

// ServiceWindow はある暦日におけるサービスの開始・終了時刻を表す
type ServiceWindow struct {
	Start time.Time
	End   time.Time
}

// BookingWindow は予約の占有ウィンドウを表す
// Block は Dining をバッファ分拡張した区間で、競合判定に用いる
type BookingWindow struct {
	Service             ServiceKey
	DurationMinutes     int
	DiningStart         time.Time
	DiningEnd           time.Time
	BlockStart          time.Time
	BlockEnd            time.Time
	ClampedToServiceEnd bool
}

// DefaultPolicy は組み込みのデフォルトポリシーを返す
// 呼び出し側が変更しても共有状態に影響しないよう毎回新しいコピーを生成する
func DefaultPolicy() *VenuePolicy {
	standardBands := func(lastDuration int) []TurnBand {
		return []TurnBand{
			{MaxPartySize: 2, DurationMinutes: 60},
			{MaxPartySize: 4, DurationMinutes: 75},
			{MaxPartySize: 6, DurationMinutes: 85},
			{MaxPartySize: 8, DurationMinutes: lastDuration},
		}
	}
	return &VenuePolicy{
		Timezone:     "Europe/London",
		ServiceOrder: []ServiceKey{ServiceLunch, ServiceDinner},
		Services: map[ServiceKey]*ServiceDefinition{
			ServiceLunch: {
				Key:       ServiceLunch,
				Label:     "Lunch",
				Start:     TimeOfDay{Hour: 12},
				End:       TimeOfDay{Hour: 15},
				Buffer:    BufferConfig{Pre: 0, Post: 5},
				TurnBands: standardBands(85),
			},
			ServiceDinner: {
				Key:       ServiceDinner,
				Label:     "Dinner",
				Start:     TimeOfDay{Hour: 17},
				End:       TimeOfDay{Hour: 22},
				Buffer:    BufferConfig{Pre: 0, Post: 5},
				TurnBands: standardBands(90),
			},
		},
	}
}

// WithTimezone はタイムゾーンだけ差し替えたポリシーのコピーを返す
func (p *VenuePolicy) WithTimezone(timezone string) *VenuePolicy {
	if timezone == "" || timezone == p.Timezone {
		timezone = p.Timezone
	}
	services := make(map[ServiceKey]*ServiceDefinition, len(p.Services))
	for key, svc := range p.Services {
		clone := *svc
		clone.TurnBands = append([]TurnBand(nil), svc.TurnBands...)
		services[key] = &clone
	}
	return &VenuePolicy{
		Timezone:     timezone,
		ServiceOrder: append([]ServiceKey(nil), p.ServiceOrder...),
		Services:     services,
	}
}

// Version はポリシー内容から導出した短いハッシュを返す
// ホールドのメタデータに記録し、どのポリシーで見積もったかを後から突き合わせる
func (p *VenuePolicy) Version() string {
	var b strings.Builder
	b.WriteString(p.Timezone)
	for _, svc := range p.activeServices() {
		fmt.Fprintf(&b, "|%s:%02d%02d-%02d%02d:%d/%d:%t",
			svc.Key, svc.Start.Hour, svc.Start.Minute, svc.End.Hour, svc.End.Minute,
			svc.Buffer.Pre, svc.Buffer.Post, svc.AllowOverrun)
		for _, band := range svc.TurnBands {
			fmt.Fprintf(&b, ",%d=%d", band.MaxPartySize, band.DurationMinutes)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:6])
}

// activeServices は serviceOrder の順に定義済みサービスを返す
func (p *VenuePolicy) activeServices() []*ServiceDefinition {
	out := make([]*ServiceDefinition, 0, len(p.ServiceOrder))
	for _, key := range p.ServiceOrder {
		if svc, ok := p.Services[key]; ok && svc != nil {
			out = append(out, svc)
		}
	}
	return out
}

// Location はポリシーのタイムゾーンを返す（不明な場合はUTC）
func (p *VenuePolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServiceWindowFor はサービスの当日営業時間を返す
// 終了時刻が開始時刻以前の場合は翌日に繰り越す
func (p *VenuePolicy) ServiceWindowFor(key ServiceKey, at time.Time) (ServiceWindow, error) {
	svc, ok := p.Services[key]
	if !ok || svc == nil {
		return ServiceWindow{}, &UnknownServiceError{Service: key}
	}
	zoned := at.In(p.Location())
	start := timeOn(zoned, svc.Start)
	end := timeOn(zoned, svc.End)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return ServiceWindow{Start: start, End: end}, nil
}

// WhichService は時刻を含むサービスを返す（該当なしは空文字）
func (p *VenuePolicy) WhichService(at time.Time) ServiceKey {
	zoned := at.In(p.Location())
	for _, svc := range p.activeServices() {
		window, err := p.ServiceWindowFor(svc.Key, zoned)
		if err != nil {
			continue
		}
		if !zoned.Before(window.Start) && zoned.Before(window.End) {
			return svc.Key
		}
	}
	return ""
}

// TurnBandFor はパーティーサイズに対応するターンバンドを返す
func (p *VenuePolicy) TurnBandFor(key ServiceKey, partySize int) (TurnBand, error) {
	svc, ok := p.Services[key]
	if !ok || svc == nil {
		return TurnBand{}, &UnknownServiceError{Service: key}
	}
	bands := svc.TurnBands
	if len(bands) == 0 {
		return TurnBand{}, &UnknownServiceError{Service: key}
	}
	if partySize <= 0 {
		return bands[0], nil
	}
	for _, band := range bands {
		if partySize <= band.MaxPartySize {
			return band, nil
		}
	}
	return bands[len(bands)-1], nil
}

func timeOn(base time.Time, tod TimeOfDay) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), tod.Hour, tod.Minute, 0, 0, base.Location())
}
