package reminder

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		r       Reminder
		wantErr bool
	}{
		{
			name: "valid time interval",
			r:    Reminder{ID: "a", Trigger: TriggerTime, TimeTrigger: TimeInterval, Interval: 10, Unit: UnitMinutes},
		},
		{
			name: "valid incomplete time",
			r:    Reminder{ID: "b", Trigger: TriggerTime},
		},
		{
			name: "valid location",
			r:    Reminder{ID: "c", Trigger: TriggerLocation, Lat: 52.5, Lng: 13.4, Radius: 100, On: OnEnter},
		},
		{
			name:    "empty id",
			r:       Reminder{Trigger: TriggerTime},
			wantErr: true,
		},
		{
			name:    "unknown trigger",
			r:       Reminder{ID: "d", Trigger: "sometimes"},
			wantErr: true,
		},
		{
			name:    "location without radius",
			r:       Reminder{ID: "e", Trigger: TriggerLocation, Lat: 1, Lng: 1, On: OnLeave},
			wantErr: true,
		},
		{
			name:    "location with bad direction",
			r:       Reminder{ID: "f", Trigger: TriggerLocation, Lat: 1, Lng: 1, Radius: 50, On: "near"},
			wantErr: true,
		},
		{
			name:    "location with out-of-range lat",
			r:       Reminder{ID: "g", Trigger: TriggerLocation, Lat: 91, Lng: 0, Radius: 50, On: OnEnter},
			wantErr: true,
		},
		{
			name:    "mixed field groups",
			r:       Reminder{ID: "h", Trigger: TriggerTime, TimeTrigger: TimeExact, TimeOfDay: "09:00", Radius: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// The JSON form is the import/export format; every field must survive a
// round trip unchanged.
func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	originals := []Reminder{
		{
			ID: "r1", Text: "stand up", Trigger: TriggerTime,
			TimeTrigger: TimeInterval, Interval: 45, Unit: UnitMinutes,
			Recurring: true, Vibrate: true, Sound: "chime",
		},
		{
			ID: "r2", Text: "meds", Trigger: TriggerTime,
			TimeTrigger: TimeExact, TimeOfDay: "09:00",
		},
		{
			ID: "r3", Text: "weekly review", Trigger: TriggerTime,
			TimeTrigger: TimeCron, CronSpec: "0 17 * * 5", Sound: "gong",
		},
		{
			ID: "r4", Text: "buy milk", Trigger: TriggerLocation,
			Address: "Main St 1", Lat: 52.52, Lng: 13.405, Radius: 150,
			On: OnEnter, Vibrate: true,
		},
	}

	for _, orig := range originals {
		b, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("marshal %s: %v", orig.ID, err)
		}
		var got Reminder
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", orig.ID, err)
		}
		if !reflect.DeepEqual(orig, got) {
			t.Fatalf("round trip changed %s:\n  in:  %+v\n  out: %+v", orig.ID, orig, got)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	h, m, err := ParseTimeOfDay("23:15")
	if err != nil {
		t.Fatalf("ParseTimeOfDay error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	for _, bad := range []string{"24:00", "12:60", "noon", "9", "9:5:1", ""} {
		if _, _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestUnitDuration(t *testing.T) {
	t.Parallel()
	if d, ok := UnitMinutes.Duration(); !ok || d.Milliseconds() != 60_000 {
		t.Fatalf("minutes = %v, %v", d, ok)
	}
	if d, ok := UnitHours.Duration(); !ok || d.Milliseconds() != 3_600_000 {
		t.Fatalf("hours = %v, %v", d, ok)
	}
	if d, ok := UnitDays.Duration(); !ok || d.Milliseconds() != 86_400_000 {
		t.Fatalf("days = %v, %v", d, ok)
	}
	if _, ok := IntervalUnit("weeks").Duration(); ok {
		t.Fatal("unknown unit should not resolve")
	}
}

func TestIsRecurring(t *testing.T) {
	t.Parallel()
	cron := Reminder{ID: "c", Trigger: TriggerTime, TimeTrigger: TimeCron, CronSpec: "* * * * *"}
	if !cron.IsRecurring() {
		t.Fatal("cron reminders always recur")
	}
	oneShot := Reminder{ID: "o", Trigger: TriggerTime, TimeTrigger: TimeExact, TimeOfDay: "08:00"}
	if oneShot.IsRecurring() {
		t.Fatal("one-shot exact reminder must not recur")
	}
}
