// Package trend derives the chart series and daily summaries shown next to
// a patient's pain log.
package trend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"carepath/pkg"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DayPoint is the average pain of one calendar day.
type DayPoint struct {
	Date            string  `json:"date"`
	VAS             float64 `json:"vas"`
	Count           int     `json:"count"`
	HasConsultation bool    `json:"hasConsultation"`
	RecordID        string  `json:"recordId,omitempty"`
}

// TimelinePoint is one log entry plotted on the detailed chart.
type TimelinePoint struct {
	FullDate    string  `json:"fullDate"`
	DisplayDate string  `json:"displayDate"`
	Time        string  `json:"time"`
	VAS         float64 `json:"vas"`
}

// Comment is a free-text note left with a log entry.
type Comment struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// TodaySummary aggregates the logs recorded on the current day.
type TodaySummary struct {
	Date          string    `json:"date"`
	Count         int       `json:"count"`
	Average       float64   `json:"average"`
	Min           int       `json:"min"`
	Max           int       `json:"max"`
	PainLocations []string  `json:"painLocations"`
	Comments      []Comment `json:"comments"`
	Fluctuation   string    `json:"fluctuation"`
}

// Direction is the movement of pain since the last consultation.
type Direction string

const (
	DirectionFirstVisit Direction = "first-visit"
	DirectionUp         Direction = "up"
	DirectionDown       Direction = "down"
	DirectionFlat       Direction = "flat"
)

// Change compares the current pain score with the last consultation.
type Change struct {
	Direction    Direction `json:"direction"`
	PreviousDate string    `json:"previousDate,omitempty"`
	Previous     float64   `json:"previous"`
	Current      float64   `json:"current"`
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DailySeries groups logs by date and averages each day.  Days on which a
// consultation was saved carry the id of the first such record.
func DailySeries(logs []pkg.StatusLog, history []pkg.ConsultationRecord) []DayPoint {
	byDate := lo.GroupBy(logs, func(l pkg.StatusLog) string { return l.Date })

	out := make([]DayPoint, 0, len(byDate))
	for date, dayLogs := range byDate {
		sum := lo.SumBy(dayLogs, func(l pkg.StatusLog) int { return l.VASScore })
		p := DayPoint{
			Date:  date,
			VAS:   Round1(float64(sum) / float64(len(dayLogs))),
			Count: len(dayLogs),
		}
		if rec, ok := lo.Find(history, func(r pkg.ConsultationRecord) bool { return r.Date == date }); ok {
			p.HasConsultation = true
			p.RecordID = rec.ID
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Timeline lists every log in chronological order.  Without logs the saved
// consultations are plotted instead.
func Timeline(logs []pkg.StatusLog, history []pkg.ConsultationRecord) []TimelinePoint {
	if len(logs) == 0 {
		return lo.Map(history, func(r pkg.ConsultationRecord, _ int) TimelinePoint {
			return TimelinePoint{FullDate: r.Date, DisplayDate: monthDay(r.Date), VAS: r.VASScore}
		})
	}

	sorted := append([]pkg.StatusLog(nil), logs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Time < sorted[j].Time
	})
	return lo.Map(sorted, func(l pkg.StatusLog, _ int) TimelinePoint {
		return TimelinePoint{
			FullDate:    l.Date + " " + l.Time,
			DisplayDate: monthDay(l.Date),
			Time:        l.Time,
			VAS:         float64(l.VASScore),
		}
	})
}

func monthDay(date string) string {
	if len(date) > 5 {
		return date[5:]
	}
	return date
}

// Today summarises the logs dated on now's calendar day.  When nothing was
// logged the profile's latest values stand in.
func Today(u *pkg.UserData, now time.Time) TodaySummary {
	today := now.Format(DateLayout)
	logs := lo.Filter(u.StatusLogs, func(l pkg.StatusLog, _ int) bool { return l.Date == today })

	s := TodaySummary{
		Date:          today,
		Count:         len(logs),
		Average:       float64(u.VASScore),
		Min:           u.VASScore,
		Max:           u.VASScore,
		PainLocations: []string{},
		Comments:      []Comment{},
		Fluctuation:   "오늘의 상세 상태 기록이 없습니다. (환자가 기록하지 않음)",
	}
	if len(logs) == 0 {
		s.PainLocations = append(s.PainLocations, u.PainLocation...)
		return s
	}

	scores := lo.Map(logs, func(l pkg.StatusLog, _ int) int { return l.VASScore })
	s.Average = Round1(float64(lo.Sum(scores)) / float64(len(scores)))
	s.Min = lo.Min(scores)
	s.Max = lo.Max(scores)
	s.PainLocations = lo.Uniq(lo.FlatMap(logs, func(l pkg.StatusLog, _ int) []string { return l.PainLocation }))
	if len(s.PainLocations) == 0 {
		s.PainLocations = append(s.PainLocations, u.PainLocation...)
	}
	for _, l := range logs {
		if l.Symptoms != "" {
			s.Comments = append(s.Comments, Comment{Time: l.Time, Text: l.Symptoms})
		}
	}
	s.Fluctuation = fmt.Sprintf("오늘 총 %d회 기록됨. 통증 점수 최저 %d점에서 최고 %d점까지 변화함.", s.Count, s.Min, s.Max)
	return s
}

// Trend compares current against the previous consultation, if any.
func Trend(previous *pkg.ConsultationRecord, current float64) Change {
	c := Change{Direction: DirectionFirstVisit, Current: current}
	if previous == nil {
		return c
	}
	c.PreviousDate = previous.Date
	c.Previous = previous.VASScore
	switch {
	case current > previous.VASScore:
		c.Direction = DirectionUp
	case current < previous.VASScore:
		c.Direction = DirectionDown
	default:
		c.Direction = DirectionFlat
	}
	return c
}

// Sentence renders the change the way the analysis prompt quotes it.
func (c Change) Sentence() string {
	if c.Direction == DirectionFirstVisit {
		return "첫 방문입니다."
	}
	return fmt.Sprintf("지난 진료(%s) 당시 VAS %g점에서 현재 %g점으로 변화했습니다.", c.PreviousDate, c.Previous, c.Current)
}
