package model

import (
	"testing"
	"time"
)

func TestObject_IsLive(t *testing.T) {
	exp := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	obj := &Object{ID: "0123456789abcdef", ExpiresAt: exp}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"задолго до истечения", exp.Add(-time.Hour), true},
		{"за наносекунду до истечения", exp.Add(-time.Nanosecond), true},
		{"ровно в момент истечения", exp, false},
		{"после истечения", exp.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := obj.IsLive(tt.now); got != tt.want {
				t.Errorf("IsLive(%v): хотели %v, получили %v", tt.now, tt.want, got)
			}
			if got := obj.IsExpired(tt.now); got == tt.want {
				t.Errorf("IsExpired(%v) должен быть обратным к IsLive", tt.now)
			}
		})
	}
}

func TestObject_Remaining(t *testing.T) {
	exp := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	obj := &Object{ExpiresAt: exp}

	if got := obj.Remaining(exp.Add(-90 * time.Second)); got != 90*time.Second {
		t.Errorf("Remaining: хотели 90s, получили %v", got)
	}
	if got := obj.Remaining(exp.Add(time.Minute)); got != 0 {
		t.Errorf("Remaining после истечения: хотели 0, получили %v", got)
	}
}

func TestObject_SizeKnown(t *testing.T) {
	if (&Object{Size: UnknownSize}).SizeKnown() {
		t.Error("UnknownSize не должен считаться известным размером")
	}
	if !(&Object{Size: 0}).SizeKnown() {
		t.Error("нулевой размер — известный размер")
	}
}
