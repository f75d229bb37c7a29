package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillserv/fieldops/internal/config"
)

func defaultRules() Rules {
	return FromConfig(config.DefaultDispatchConfig())
}

func TestDurationMinutes(t *testing.T) {
	rules := defaultRules()

	assert.Equal(t, 90, rules.DurationMinutes("Cleaning", 1))
	assert.Equal(t, 90, rules.DurationMinutes("GasRecharge", 1.5))
	assert.Equal(t, 180, rules.DurationMinutes("Cleaning", 2))
	assert.Equal(t, 180, rules.DurationMinutes("Cleaning", 2.5))
	assert.Equal(t, 180, rules.DurationMinutes("Repair", 0))
	assert.Equal(t, 180, rules.DurationMinutes("repair", 1))
}

func TestSlotsGrid(t *testing.T) {
	slots := defaultRules().Slots()

	require.Len(t, slots, 13)
	assert.Equal(t, "10:00", slots[0])
	assert.Equal(t, "10:30", slots[1])
	assert.Equal(t, "16:00", slots[12])
}

func TestBlockedSlotsShortJob(t *testing.T) {
	rules := defaultRules()

	blocked := rules.BlockedSlots([]Job{{StartMinute: 600, Service: "Cleaning", Tonnage: 1}})

	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, blocked)
}

func TestBlockedSlotsRepairJob(t *testing.T) {
	rules := defaultRules()

	blocked := rules.BlockedSlots([]Job{{StartMinute: 600, Service: "Repair"}})

	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30", "12:00", "12:30"}, blocked)
}

func TestBlockedSlotsEndBoundaryIsFree(t *testing.T) {
	rules := defaultRules()

	blocked := rules.BlockedSlots([]Job{{StartMinute: 690, Service: "Cleaning", Tonnage: 1}})

	// 11:30 + 1.5h ends at 13:00, which stays bookable.
	assert.Contains(t, blocked, "12:30")
	assert.NotContains(t, blocked, "13:00")
}

func TestBlockedSlotsOverlappingJobsDeduplicated(t *testing.T) {
	rules := defaultRules()

	blocked := rules.BlockedSlots([]Job{
		{StartMinute: 600, Service: "Cleaning", Tonnage: 1},
		{StartMinute: 630, Service: "Cleaning", Tonnage: 1},
	})

	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, blocked)
}

func TestBlockedSlotsEmptyDay(t *testing.T) {
	assert.Empty(t, defaultRules().BlockedSlots(nil))
}

func TestLoadLevelThresholds(t *testing.T) {
	rules := defaultRules()

	cases := []struct {
		name    string
		jobs    []Job
		level   string
		minutes int
	}{
		{
			name:    "empty day is high availability",
			jobs:    nil,
			level:   LoadHigh,
			minutes: 0,
		},
		{
			name: "4.5h is low availability",
			jobs: []Job{
				{StartMinute: 600, Service: "Cleaning", Tonnage: 1},
				{StartMinute: 720, Service: "Repair"},
			},
			level:   LoadLow,
			minutes: 270,
		},
		{
			name: "6h is saturated",
			jobs: []Job{
				{StartMinute: 600, Service: "Repair"},
				{StartMinute: 780, Service: "Repair"},
			},
			level:   LoadNone,
			minutes: 360,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total := rules.LoadMinutes(tc.jobs)
			require.Equal(t, tc.minutes, total)
			assert.Equal(t, tc.level, rules.LoadLevel(total))
		})
	}
}

func TestMinuteLabelRoundTrip(t *testing.T) {
	for _, label := range []string{"10:00", "10:30", "16:00", "09:05"} {
		minute, err := ParseSlot(label)
		require.NoError(t, err)
		assert.Equal(t, label, MinuteLabel(minute))
	}
}

func TestParseSlotRejectsGarbage(t *testing.T) {
	for _, label := range []string{"", "10", "10:xx", "25:00", "10:75", "ten thirty"} {
		_, err := ParseSlot(label)
		assert.Error(t, err, label)
	}
}
