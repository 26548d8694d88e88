package service

import (
	"testing"
	"time"
)

func TestTriggerPolicyCronSpec(t *testing.T) {
	tests := []struct {
		name    string
		policy  TriggerPolicy
		want    string
		wantErr bool
	}{
		{"daily", Daily{At: "17:30"}, "0 30 17 * * *", false},
		{"daily midnight", Daily{At: "00:00"}, "0 0 0 * * *", false},
		{"weekly sunday", Weekly{Day: time.Sunday, At: "02:00"}, "0 0 2 * * 0", false},
		{"every minute", Every{Interval: time.Minute}, "@every 60s", false},
		{"bad hour", Daily{At: "24:00"}, "", true},
		{"bad format", Weekly{Day: time.Monday, At: "7am"}, "", true},
		{"zero interval", Every{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.policy.CronSpec()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("spec = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSchedulerServiceNextActivation(t *testing.T) {
	s := NewSchedulerService(time.UTC, nil)
	id, err := s.Schedule(Daily{At: "17:30"}, func() {})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	next := s.Next(id)
	if next.IsZero() {
		t.Fatal("next activation not computed")
	}
	if next.Hour() != 17 || next.Minute() != 30 || next.Second() != 0 {
		t.Fatalf("next = %v", next)
	}
	if s.EntryCount() != 1 {
		t.Fatalf("entries = %d", s.EntryCount())
	}
}
