package model

import (
	"errors"
	"fmt"
	"time"
)

// ExamWindow identifies one schedulable exam instance and its wall-clock
// availability window. Fetched once per session; immutable afterwards.
type ExamWindow struct {
	ExamID         string `json:"exam_id"`
	Date           string `json:"date"`       // "2006-01-02"
	StartTime      string `json:"start_time"` // "15:04"
	EndTime        string `json:"end_time"`   // "15:04"
	TotalMarks     int    `json:"total_marks"`
	TotalQuestions int    `json:"total_questions"`
}

// ErrInvalidWindow is returned when a window's bounds are malformed or inverted.
var ErrInvalidWindow = errors.New("invalid exam window")

// Bounds resolves the window into absolute start and end instants on the
// window's calendar day in the given location. startTime must precede endTime.
func (w ExamWindow) Bounds(loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}

	day, err := time.ParseInLocation("2006-01-02", w.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidWindow, w.Date, err)
	}

	start, err = atClock(day, w.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_time %q: %v", ErrInvalidWindow, w.StartTime, err)
	}
	end, err = atClock(day, w.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_time %q: %v", ErrInvalidWindow, w.EndTime, err)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow, w.StartTime, w.EndTime)
	}
	return start, end, nil
}

// atClock anchors an "HH:MM" clock reading onto the given calendar day.
func atClock(day time.Time, hhmm string) (time.Time, error) {
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}

// ExamPaper is the question set for one exam as delivered to a student,
// together with the class the student takes it under.
type ExamPaper struct {
	ClassID   string     `json:"class_id"`
	Questions []Question `json:"questions"`
}
