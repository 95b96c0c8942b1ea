// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Weekday は営業時間の曜日キーを表す。
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays は月曜始まりの曜日の固定順序。
// 営業時間の変換処理はこの順序で曜日を走査する。
var Weekdays = []Weekday{
	Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday,
}

// TimeRange は1つの営業時間帯を "HH:MM" 形式で表す。
type TimeRange struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// DayHours は1曜日分の営業時間を表す。
// IsOpenがfalseの場合、Rangesは空でなければならない。
// Rangesは開始時刻の昇順で、互いに重複しない。
type DayHours struct {
	IsOpen bool        `json:"isOpen"`
	Ranges []TimeRange `json:"ranges"`
}

// WeekHours は7曜日すべての営業時間を保持する。
type WeekHours map[Weekday]DayHours

// SpecialDay は特定日付の営業時間オーバーライド（祝日等）を表す。
// Dateは "YYYY-MM-DD" 形式。
type SpecialDay struct {
	Date   string      `json:"date"`
	IsOpen bool        `json:"isOpen"`
	Ranges []TimeRange `json:"ranges"`
}

// BusinessProfile はビジネス情報の正準モデルを表す。
// このサブシステムからは読み取り専用で、所有者はビジネス管理層。
type BusinessProfile struct {
	ID          string
	UserID      string
	Name        string
	Description string
	WebsiteURL  string
	Hours       WeekHours
	SpecialDays []SpecialDay
	// PlatformOverrides はプラットフォーム別の説明文オーバーライド。
	// 空でない値が存在する場合、正準のDescriptionより優先される。
	PlatformOverrides map[Platform]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DescriptionFor は指定プラットフォーム向けの説明文を解決する。
// 解決順序: プラットフォーム別オーバーライド（空でない場合）→ 正準のDescription。
func (b *BusinessProfile) DescriptionFor(platform Platform) string {
	if override, ok := b.PlatformOverrides[platform]; ok && override != "" {
		return override
	}
	return b.Description
}

// ValidateHours は営業時間の不変条件を検証する。
//   - 7曜日すべてが揃っていること
//   - 閉店日（IsOpen=false）に時間帯が存在しないこと
//   - 各曜日の時間帯が開始時刻の昇順で重複していないこと
func (b *BusinessProfile) ValidateHours() error {
	if len(b.Hours) != len(Weekdays) {
		return fmt.Errorf("営業時間には7曜日すべてが必要です: %d曜日のみ設定されています", len(b.Hours))
	}
	for _, day := range Weekdays {
		hours, ok := b.Hours[day]
		if !ok {
			return fmt.Errorf("曜日 %s の営業時間が設定されていません", day)
		}
		if !hours.IsOpen && len(hours.Ranges) > 0 {
			return fmt.Errorf("曜日 %s は閉店日ですが時間帯が設定されています", day)
		}
		for i := 1; i < len(hours.Ranges); i++ {
			if hours.Ranges[i].Open < hours.Ranges[i-1].Close {
				return fmt.Errorf("曜日 %s の時間帯が重複しています: %s < %s",
					day, hours.Ranges[i].Open, hours.Ranges[i-1].Close)
			}
		}
	}
	return nil
}
