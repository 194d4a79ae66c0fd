package recurrence

import (
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
)

func BenchmarkEngineOccurrence(b *testing.B) {
	engine := NewEngine(time.FixedZone("UTC+8", 8*60*60))
	slots := make([]Slot, 0, 5)
	for _, day := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		slot, err := NewSlot(day, "8:00", "9:30")
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		slots = append(slots, slot)
	}
	start := scheduler.MustParseDate("2025-06-02")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		date := start.AddDays(i % 90)
		matched := 0
		for _, slot := range slots {
			if _, ok := engine.Occurrence(slot, date); ok {
				matched++
			}
		}
		if !date.IsWeekend() && matched != 1 {
			b.Fatalf("expected one occurrence on %s, got %d", date, matched)
		}
	}
}
