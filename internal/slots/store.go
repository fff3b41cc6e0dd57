// Package slots normalizes the raw date→times map returned by the clinic
// backend into a future-only, date-ordered view that the booking and
// reschedule wizards navigate. The view is rebuilt from scratch on every
// fetch; nothing here persists between fetches.
package slots

import (
	"fmt"
	"sort"
	"time"
)

// Record is one bookable slot on a specific date. ID is derived from the
// date and the slot's index within that date so it stays stable for the
// lifetime of the view.
type Record struct {
	ID            string `json:"id"`
	Date          string `json:"date"` // YYYY-MM-DD
	SlotTime      string `json:"slot_time"`
	WorkplaceID   string `json:"workplace_id,omitempty"`
	DoctorID      string `json:"doctor_id,omitempty"`
	DoctorName    string `json:"doctor_name,omitempty"`
	WorkplaceName string `json:"workplace_name,omitempty"`
	Available     bool   `json:"available"`
}

// View is the normalized result of a slot fetch. Dates is sorted ascending;
// every date in Dates has an entry in Buckets, possibly empty. An empty
// bucket means the workplace was queried and has no openings that day,
// which callers must tell apart from a date that was never fetched.
type View struct {
	Dates   []string            `json:"dates"`
	Buckets map[string][]Record `json:"buckets"`
}

// Empty reports whether the view holds no dates at all.
func (v View) Empty() bool {
	return len(v.Dates) == 0
}

// Bucket returns the records for a date and whether that date was fetched.
func (v View) Bucket(date string) ([]Record, bool) {
	recs, ok := v.Buckets[date]
	return recs, ok
}

// Find returns the record with the given ID, if present.
func (v View) Find(id string) (Record, bool) {
	for _, date := range v.Dates {
		for _, rec := range v.Buckets[date] {
			if rec.ID == id {
				return rec, true
			}
		}
	}
	return Record{}, false
}

type buildOptions struct {
	workplaceID   string
	doctorID      string
	doctorName    string
	workplaceName string
	excludeDate   string
	excludeTime   string
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

// WithMeta stamps every record with the doctor/workplace the slots were
// fetched for.
func WithMeta(doctorID, doctorName, workplaceID, workplaceName string) BuildOption {
	return func(o *buildOptions) {
		o.doctorID = doctorID
		o.doctorName = doctorName
		o.workplaceID = workplaceID
		o.workplaceName = workplaceName
	}
}

// WithExcludeTime drops the given time string from the given date's bucket.
// Rescheduling uses this so an appointment's current slot never shows up as
// a reschedule target. Exclusion happens before IDs are assigned.
func WithExcludeTime(date, slotTime string) BuildOption {
	return func(o *buildOptions) {
		o.excludeDate = date
		o.excludeTime = slotTime
	}
}

// Build normalizes a raw date→time-strings map. Dates before the local
// calendar day of now are dropped; surviving dates are sorted ascending
// (ISO dates order correctly as strings). Dates that fail to parse as
// YYYY-MM-DD are dropped too.
func Build(raw map[string][]string, now time.Time, opts ...BuildOption) View {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	view := View{Buckets: make(map[string][]Record, len(raw))}
	for date, times := range raw {
		if !onOrAfterToday(date, now) {
			continue
		}
		bucket := make([]Record, 0, len(times))
		for _, slotTime := range times {
			if date == o.excludeDate && slotTime == o.excludeTime {
				continue
			}
			bucket = append(bucket, Record{
				ID:            fmt.Sprintf("%s-%d", date, len(bucket)),
				Date:          date,
				SlotTime:      slotTime,
				WorkplaceID:   o.workplaceID,
				DoctorID:      o.doctorID,
				DoctorName:    o.doctorName,
				WorkplaceName: o.workplaceName,
				Available:     true,
			})
		}
		view.Dates = append(view.Dates, date)
		view.Buckets[date] = bucket
	}
	sort.Strings(view.Dates)
	return view
}

// onOrAfterToday compares calendar days using explicit local y/m/d fields.
// Comparing time.Parse output against time.Now() shifts by the UTC offset
// and drops or keeps the wrong edge day, so the instants are never compared
// directly.
func onOrAfterToday(date string, now time.Time) bool {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}
	y, m, d := now.Date()
	py, pm, pd := parsed.Date()
	if py != y {
		return py > y
	}
	if pm != m {
		return pm > m
	}
	return pd >= d
}
