package payroll

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/leave"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

const (
	nightStartsAt = 20 * time.Hour
	nightEndsBy   = 6 * time.Hour
)

// classification of a completed shift, first match wins.
type hoursBucket int

const (
	bucketStandard hoursBucket = iota
	bucketOvertime
	bucketSunday
	bucketNight
)

func classify(s workforce.Shift, day time.Time, start, end time.Duration) hoursBucket {
	switch {
	case s.Type == workforce.ShiftOvertime:
		return bucketOvertime
	case day.Weekday() == time.Sunday:
		return bucketSunday
	case start >= nightStartsAt || end <= nightEndsBy:
		return bucketNight
	default:
		return bucketStandard
	}
}

// clock parses HH:MM as an offset from midnight.
func clock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || h > 23 || m > 59 || h < 0 || m < 0 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// shiftHours returns the worked hours; an end at or before the start
// crosses midnight.
func shiftHours(start, end time.Duration) float64 {
	d := end - start
	if d <= 0 {
		d += 24 * time.Hour
	}
	return d.Hours()
}

type periodVariables struct {
	Variables   []Variables
	DraftShifts int
	Skipped     []string
}

// computeVariables folds the facility's shifts of the month and approved
// leave into per-principal variables.
func (m *Module) computeVariables(ctx context.Context, p Period) (periodVariables, error) {
	from, to := p.Bounds()
	shifts, err := m.workforce.ShiftsAt(ctx, p.Facility)
	if err != nil {
		return periodVariables{}, workforce.Translate(err, "load shifts")
	}

	out := periodVariables{}
	byPrincipal := make(map[id.PrincipalID]*Variables)
	get := func(pid id.PrincipalID) *Variables {
		v, ok := byPrincipal[pid]
		if !ok {
			v = &Variables{PrincipalID: pid.String()}
			byPrincipal[pid] = v
		}
		return v
	}

	for _, s := range shifts {
		day, err := workforce.ParseDate(s.Date)
		if err != nil || day.Before(from) || day.After(to) {
			continue
		}
		switch s.Status {
		case workforce.ShiftDraft:
			out.DraftShifts++
			continue
		case workforce.ShiftCompleted:
		default:
			continue
		}
		start, err1 := clock(s.Start)
		end, err2 := clock(s.End)
		if err1 != nil || err2 != nil {
			out.Skipped = append(out.Skipped, s.ID.String())
			continue
		}
		v := get(s.Principal)
		v.Shifts++
		hours := shiftHours(start, end)
		switch classify(s, day, start, end) {
		case bucketOvertime:
			v.OvertimeHours += hours
		case bucketSunday:
			v.SundayHours += hours
		case bucketNight:
			v.NightHours += hours
		default:
			v.StandardHours += hours
		}
	}

	if facility, err := m.workforce.Facility(ctx, p.Facility); err == nil {
		for _, mem := range facility.Members {
			get(mem.Principal)
		}
	} else if !workforce.IsNotFound(err) {
		return periodVariables{}, workforce.Translate(err, "load facility")
	}

	for pid, v := range byPrincipal {
		if m.absences == nil {
			break
		}
		if v.VacationDays, err = m.absences.ApprovedDays(ctx, pid, leave.TypeVacation, from, to); err != nil {
			return periodVariables{}, err
		}
		if v.SickDays, err = m.absences.ApprovedDays(ctx, pid, leave.TypeSick, from, to); err != nil {
			return periodVariables{}, err
		}
	}

	for _, v := range byPrincipal {
		out.Variables = append(out.Variables, *v)
	}
	slices.SortFunc(out.Variables, func(a, b Variables) int {
		return strings.Compare(a.PrincipalID, b.PrincipalID)
	})
	return out, nil
}
