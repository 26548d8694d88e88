package model

import (
	"reflect"
	"testing"
)

func TestLeadTimesNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       LeadTimes
		valid    LeadTimes
		rejected []int
	}{
		{name: "empty uses defaults", in: nil, valid: LeadTimes{1, 3, 7}},
		{name: "sorted and deduplicated", in: LeadTimes{7, 1, 3, 1}, valid: LeadTimes{1, 3, 7}},
		{name: "negative rejected", in: LeadTimes{-2, 0, 2}, valid: LeadTimes{0, 2}, rejected: []int{-2}},
		{name: "only negatives", in: LeadTimes{-1}, valid: nil, rejected: []int{-1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, rejected := tt.in.Normalize()
			if !reflect.DeepEqual(valid, tt.valid) {
				t.Errorf("valid = %v, want %v", valid, tt.valid)
			}
			if !reflect.DeepEqual(rejected, tt.rejected) {
				t.Errorf("rejected = %v, want %v", rejected, tt.rejected)
			}
		})
	}
}

func TestLeadTimesNormalizeDoesNotAliasDefaults(t *testing.T) {
	valid, _ := LeadTimes(nil).Normalize()
	valid[0] = 42
	if DefaultLeadTimes[0] != 1 {
		t.Fatal("defaults were mutated through the normalized slice")
	}
}

func TestLeadTimesScan(t *testing.T) {
	var l LeadTimes
	if err := l.Scan([]byte("[1,3]")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if !reflect.DeepEqual(l, LeadTimes{1, 3}) {
		t.Fatalf("got %v", l)
	}
	if err := l.Scan("not json"); err == nil {
		t.Fatal("expected error for malformed value")
	}
	if err := l.Scan(nil); err != nil || l != nil {
		t.Fatalf("nil scan: %v %v", l, err)
	}

	v, err := LeadTimes{0, 2}.Value()
	if err != nil || v != "[0,2]" {
		t.Fatalf("value = %v, %v", v, err)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (User{Email: "a@b.c"}).DisplayName(); got != "a@b.c" {
		t.Fatalf("got %q", got)
	}
	if got := (User{Name: "Asha", Email: "a@b.c"}).DisplayName(); got != "Asha" {
		t.Fatalf("got %q", got)
	}
}
