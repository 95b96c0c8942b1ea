package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/profileman/internal/model"
)

// googleDayNames は内部の曜日キーとGoogle APIの曜日enumの対応。
var googleDayNames = map[model.Weekday]string{
	model.Monday:    "MONDAY",
	model.Tuesday:   "TUESDAY",
	model.Wednesday: "WEDNESDAY",
	model.Thursday:  "THURSDAY",
	model.Friday:    "FRIDAY",
	model.Saturday:  "SATURDAY",
	model.Sunday:    "SUNDAY",
}

// facebookDayNames は内部の曜日キーとGraph APIの曜日プレフィックスの対応。
var facebookDayNames = map[model.Weekday]string{
	model.Monday:    "mon",
	model.Tuesday:   "tue",
	model.Wednesday: "wed",
	model.Thursday:  "thu",
	model.Friday:    "fri",
	model.Saturday:  "sat",
	model.Sunday:    "sun",
}

// TimeOfDay はGoogle APIのTimeOfDay表現。
type TimeOfDay struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes,omitempty"`
}

// GooglePeriod はGoogle APIの営業時間帯（曜日と開閉時刻の組）。
type GooglePeriod struct {
	OpenDay   string    `json:"openDay"`
	OpenTime  TimeOfDay `json:"openTime"`
	CloseDay  string    `json:"closeDay"`
	CloseTime TimeOfDay `json:"closeTime"`
}

// GoogleRegularHours はGoogle APIのregularHoursフィールド。
// 閉店日は期間を持たない（期間の不在が閉店を意味する）。
type GoogleRegularHours struct {
	Periods []GooglePeriod `json:"periods"`
}

// GoogleSpecialPeriod はGoogle APIの特別営業時間帯。
type GoogleSpecialPeriod struct {
	StartDate GoogleDate `json:"startDate"`
	Closed    bool       `json:"closed,omitempty"`
	OpenTime  *TimeOfDay `json:"openTime,omitempty"`
	CloseTime *TimeOfDay `json:"closeTime,omitempty"`
}

// GoogleDate はGoogle APIのDate表現。
type GoogleDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// GoogleSpecialHours はGoogle APIのspecialHoursフィールド。
type GoogleSpecialHours struct {
	SpecialHourPeriods []GoogleSpecialPeriod `json:"specialHourPeriods"`
}

// parseTimeOfDay は "HH:MM" をTimeOfDayに変換する。
// 不正な形式の場合はゼロ値を返す（上流でバリデーション済みの前提）。
func parseTimeOfDay(s string) TimeOfDay {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return TimeOfDay{Hours: h, Minutes: m}
}

// formatTimeOfDay はTimeOfDayを "HH:MM" に変換する。
func formatTimeOfDay(t TimeOfDay) string {
	return fmt.Sprintf("%02d:%02d", t.Hours, t.Minutes)
}

// ToGoogleHours は内部の週営業時間をGoogleのregularHours表現に変換する。
// 各曜日について最初の時間帯のみを使用する（2番目以降の時間帯は
// 変換で失われる。これは仕様上の情報損失であり、復元はできない）。
// 閉店日（IsOpen=false）は期間を出力しない。
func ToGoogleHours(hours model.WeekHours) *GoogleRegularHours {
	result := &GoogleRegularHours{Periods: []GooglePeriod{}}
	for _, day := range model.Weekdays {
		dh, ok := hours[day]
		if !ok || !dh.IsOpen || len(dh.Ranges) == 0 {
			continue
		}
		first := dh.Ranges[0]
		result.Periods = append(result.Periods, GooglePeriod{
			OpenDay:   googleDayNames[day],
			OpenTime:  parseTimeOfDay(first.Open),
			CloseDay:  googleDayNames[day],
			CloseTime: parseTimeOfDay(first.Close),
		})
	}
	return result
}

// FromGoogleHours はGoogleのregularHours表現を内部の週営業時間に復元する。
// 7曜日すべてを生成し、期間が存在しない曜日は閉店日として扱う。
func FromGoogleHours(g *GoogleRegularHours) model.WeekHours {
	byDay := make(map[string]GooglePeriod)
	if g != nil {
		for _, p := range g.Periods {
			if _, exists := byDay[p.OpenDay]; !exists {
				byDay[p.OpenDay] = p
			}
		}
	}

	hours := make(model.WeekHours, len(model.Weekdays))
	for _, day := range model.Weekdays {
		p, open := byDay[googleDayNames[day]]
		if !open {
			hours[day] = model.DayHours{IsOpen: false, Ranges: []model.TimeRange{}}
			continue
		}
		hours[day] = model.DayHours{
			IsOpen: true,
			Ranges: []model.TimeRange{{
				Open:  formatTimeOfDay(p.OpenTime),
				Close: formatTimeOfDay(p.CloseTime),
			}},
		}
	}
	return hours
}

// ToGoogleSpecialHours は特別営業日をGoogleのspecialHours表現に変換する。
// 通常営業時間と同様に最初の時間帯のみを使用する。
// 特別営業日が存在しない場合はnilを返す。
func ToGoogleSpecialHours(days []model.SpecialDay) *GoogleSpecialHours {
	if len(days) == 0 {
		return nil
	}
	result := &GoogleSpecialHours{}
	for _, sd := range days {
		date, err := parseGoogleDate(sd.Date)
		if err != nil {
			continue
		}
		period := GoogleSpecialPeriod{StartDate: date}
		if !sd.IsOpen || len(sd.Ranges) == 0 {
			period.Closed = true
		} else {
			openTime := parseTimeOfDay(sd.Ranges[0].Open)
			closeTime := parseTimeOfDay(sd.Ranges[0].Close)
			period.OpenTime = &openTime
			period.CloseTime = &closeTime
		}
		result.SpecialHourPeriods = append(result.SpecialHourPeriods, period)
	}
	if len(result.SpecialHourPeriods) == 0 {
		return nil
	}
	return result
}

// parseGoogleDate は "YYYY-MM-DD" をGoogleのDate表現に変換する。
func parseGoogleDate(s string) (GoogleDate, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return GoogleDate{}, fmt.Errorf("invalid date format: %s", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return GoogleDate{}, fmt.Errorf("invalid year in date: %s", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return GoogleDate{}, fmt.Errorf("invalid month in date: %s", s)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return GoogleDate{}, fmt.Errorf("invalid day in date: %s", s)
	}
	return GoogleDate{Year: year, Month: month, Day: day}, nil
}

// ToFacebookHours は内部の週営業時間をGraph APIのhours表現に変換する。
// 形式: {"mon_1_open": "09:00", "mon_1_close": "17:00", ...}
// 各曜日について最初の時間帯のみを使用する（2番目以降の時間帯は
// 変換で失われる）。閉店日はキーを出力しない（キーの不在が閉店を意味する）。
func ToFacebookHours(hours model.WeekHours) map[string]string {
	result := make(map[string]string)
	for _, day := range model.Weekdays {
		dh, ok := hours[day]
		if !ok || !dh.IsOpen || len(dh.Ranges) == 0 {
			continue
		}
		first := dh.Ranges[0]
		prefix := facebookDayNames[day]
		result[prefix+"_1_open"] = first.Open
		result[prefix+"_1_close"] = first.Close
	}
	return result
}

// FromFacebookHours はGraph APIのhours表現を内部の週営業時間に復元する。
// 7曜日すべてを生成し、キーが存在しない曜日は閉店日として扱う。
func FromFacebookHours(fb map[string]string) model.WeekHours {
	hours := make(model.WeekHours, len(model.Weekdays))
	for _, day := range model.Weekdays {
		prefix := facebookDayNames[day]
		open, hasOpen := fb[prefix+"_1_open"]
		close_, hasClose := fb[prefix+"_1_close"]
		if !hasOpen || !hasClose {
			hours[day] = model.DayHours{IsOpen: false, Ranges: []model.TimeRange{}}
			continue
		}
		hours[day] = model.DayHours{
			IsOpen: true,
			Ranges: []model.TimeRange{{Open: open, Close: close_}},
		}
	}
	return hours
}
