// Package throttle decides whether a campaign may dispatch a contact attempt
// right now. It is pure: callers supply the clock and the attempt counters.
package throttle

import (
    "time"

    "github.com/unclebandit/outreach-backend/internal/model"
)

// Location resolves the schedule's timezone, falling back to UTC when the
// configured name does not load.
func Location(cfg model.ScheduleConfig) *time.Location {
    loc, err := time.LoadLocation(cfg.ContactHours.Timezone)
    if err != nil || loc == nil {
        return time.UTC
    }
    return loc
}

// CanContactNow applies the four throttle rules in order: local time window,
// allowed weekday, daily cap, hourly cap. All must pass.
func CanContactNow(cfg model.ScheduleConfig, now time.Time, sentToday, sentThisHour int) bool {
    local := now.In(Location(cfg))

    if local.Hour() < cfg.ContactHours.Start || local.Hour() >= cfg.ContactHours.End {
        return false
    }
    if !cfg.ContactDay(local.Weekday()) {
        return false
    }
    if sentToday >= cfg.DailyContactLimit {
        return false
    }
    if sentThisHour >= cfg.HourlyContactLimit {
        return false
    }
    return true
}

// MidnightLocal returns the start of now's local calendar day, expressed in
// the schedule timezone. Attempt counters are taken since this instant.
func MidnightLocal(cfg model.ScheduleConfig, now time.Time) time.Time {
    local := now.In(Location(cfg))
    return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// HourStartLocal returns the start of now's local clock hour.
func HourStartLocal(cfg model.ScheduleConfig, now time.Time) time.Time {
    local := now.In(Location(cfg))
    return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, local.Location())
}

// NextEligibleTime returns the earliest instant at which the throttle could
// allow a dispatch, given the current counters. It never returns a time
// before now; when dispatch is allowed immediately, it returns now. The
// result is a lower bound: counters may have changed by then, so callers
// must re-evaluate CanContactNow after waiting.
func NextEligibleTime(cfg model.ScheduleConfig, now time.Time, sentToday, sentThisHour int) time.Time {
    if CanContactNow(cfg, now, sentToday, sentThisHour) {
        return now
    }

    local := now.In(Location(cfg))

    // Hourly cap exhausted but the day still has room: wait for the next
    // clock hour, then re-check the window rules from there.
    candidate := local
    if inWindow(cfg, local) && sentToday < cfg.DailyContactLimit && sentThisHour >= cfg.HourlyContactLimit {
        candidate = HourStartLocal(cfg, now).Add(time.Hour)
        if inWindow(cfg, candidate) {
            return candidate
        }
        local = candidate
    }

    // Outside the window, wrong weekday, or daily cap hit: scan forward to
    // the next allowed weekday's window opening. Daily caps reset at local
    // midnight, so a capped day pushes to the next day's opening.
    day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
    for i := 0; i < 8; i++ {
        open := day.Add(time.Duration(cfg.ContactHours.Start) * time.Hour)
        if cfg.ContactDay(open.Weekday()) && open.After(now.In(local.Location())) {
            sameDay := open.YearDay() == now.In(local.Location()).YearDay() && open.Year() == now.In(local.Location()).Year()
            if !sameDay || sentToday < cfg.DailyContactLimit {
                return open
            }
        }
        day = day.AddDate(0, 0, 1)
    }

    // No allowed weekday configured; poll again in a day.
    return now.Add(24 * time.Hour)
}

func inWindow(cfg model.ScheduleConfig, local time.Time) bool {
    return local.Hour() >= cfg.ContactHours.Start && local.Hour() < cfg.ContactHours.End
}
