package availability

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chillserv/fieldops/internal/config"
)

// Service kinds with a fixed long duration regardless of tonnage.
const serviceRepair = "Repair"

// Load levels reported per day on the monthly calendar.
const (
	LoadNone = "none"
	LoadLow  = "low"
	LoadHigh = "high"
)

// Rules carries the scheduling window and duration thresholds.
type Rules struct {
	WindowStartMinute int
	WindowEndMinute   int
	SlotMinutes       int
	ShortJobMinutes   int
	LongJobMinutes    int
	TonnageThreshold  float64
	SaturatedMinutes  int
	BusyMinutes       int
}

// Job is the slice of a booking the engine needs: where it starts and
// what kind of work it is.
type Job struct {
	StartMinute int
	Service     string
	Tonnage     float64
}

// DayLoad classifies one calendar day for heatmap display.
type DayLoad struct {
	Date  string  `json:"date"`
	Level string  `json:"level"`
	Load  float64 `json:"load"`
}

// FromConfig maps the runtime dispatch tuning onto engine rules.
func FromConfig(cfg config.DispatchConfig) Rules {
	return Rules{
		WindowStartMinute: cfg.WindowStartMinute,
		WindowEndMinute:   cfg.WindowEndMinute,
		SlotMinutes:       cfg.SlotMinutes,
		ShortJobMinutes:   cfg.ShortJobMinutes,
		LongJobMinutes:    cfg.LongJobMinutes,
		TonnageThreshold:  cfg.TonnageThreshold,
		SaturatedMinutes:  cfg.SaturatedMinutes,
		BusyMinutes:       cfg.BusyMinutes,
	}
}

// DurationMinutes returns how long a job occupies the calendar. Repair
// work and heavy units take the long duration, everything else the short.
func (r Rules) DurationMinutes(service string, tonnage float64) int {
	if strings.EqualFold(strings.TrimSpace(service), serviceRepair) || tonnage >= r.TonnageThreshold {
		return r.LongJobMinutes
	}
	return r.ShortJobMinutes
}

// Slots enumerates every bookable grid point, window bounds inclusive.
func (r Rules) Slots() []string {
	if r.SlotMinutes <= 0 {
		return nil
	}
	slots := make([]string, 0, (r.WindowEndMinute-r.WindowStartMinute)/r.SlotMinutes+1)
	for m := r.WindowStartMinute; m <= r.WindowEndMinute; m += r.SlotMinutes {
		slots = append(slots, MinuteLabel(m))
	}
	return slots
}

// BlockedSlots computes which grid slots are occupied by the day's jobs.
// A slot g is blocked by a job starting at s with duration d when
// s <= g < s+d, so the slot exactly at a job's end time stays free.
func (r Rules) BlockedSlots(jobs []Job) []string {
	blocked := make([]string, 0)
	for m := r.WindowStartMinute; m <= r.WindowEndMinute; m += r.SlotMinutes {
		for _, job := range jobs {
			end := job.StartMinute + r.DurationMinutes(job.Service, job.Tonnage)
			if job.StartMinute <= m && m < end {
				blocked = append(blocked, MinuteLabel(m))
				break
			}
		}
	}
	return blocked
}

// LoadMinutes sums the occupied duration of the given jobs.
func (r Rules) LoadMinutes(jobs []Job) int {
	total := 0
	for _, job := range jobs {
		total += r.DurationMinutes(job.Service, job.Tonnage)
	}
	return total
}

// LoadLevel buckets a day's total occupied minutes. A saturated day
// reports "none" remaining availability; a lightly used day reports "high".
func (r Rules) LoadLevel(totalMinutes int) string {
	switch {
	case totalMinutes >= r.SaturatedMinutes:
		return LoadNone
	case totalMinutes >= r.BusyMinutes:
		return LoadLow
	default:
		return LoadHigh
	}
}

// MinuteLabel renders a minute-of-day as a HH:MM slot label.
func MinuteLabel(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseSlot converts a HH:MM label to a minute-of-day.
func ParseSlot(label string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(label), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid slot label %q", label)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid slot label %q", label)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid slot label %q", label)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("slot label %q out of range", label)
	}
	return hours*60 + minutes, nil
}
