package modlog

import (
	"reflect"
	"testing"
)

func TestCategoryBitPositions(t *testing.T) {
	// The stored mask format: one bit per category, in this exact order.
	expected := map[Category]int{
		ClearMessages:       1 << 0,
		ClearChannel:        1 << 1,
		Mute:                1 << 2,
		Unmute:              1 << 3,
		Kick:                1 << 4,
		Lock:                1 << 5,
		Unlock:              1 << 6,
		Ban:                 1 << 7,
		Unban:               1 << 8,
		Warn:                1 << 9,
		RemoveWarn:          1 << 10,
		RemoveMultipleWarns: 1 << 11,
	}
	for c, bit := range expected {
		if !Mask(bit).Has(c) {
			t.Errorf("category %s does not match bit %b", c, bit)
		}
	}
}

func TestMaskSetRoundTrip(t *testing.T) {
	want := []Category{Lock, Ban, Warn}
	for _, start := range []Mask{0, 0b101, 0xFFF, Mask(0).With(Kick, Unban)} {
		m := start.Without(AllCategories()...).With(want...)
		if got := m.Categories(); !reflect.DeepEqual(got, want) {
			t.Errorf("start=%b: got %v, want %v", start, got, want)
		}
	}
}

func TestMaskWithout(t *testing.T) {
	m := Mask(0).With(Ban, Warn, Kick).Without(Warn)
	if m.Has(Warn) {
		t.Error("warn still set after Without")
	}
	if !m.Has(Ban) || !m.Has(Kick) {
		t.Error("Without removed unrelated categories")
	}
}

func TestCategoryFromName(t *testing.T) {
	c, ok := CategoryFromName("Remove_Warn")
	if !ok || c != RemoveWarn {
		t.Fatalf("expected RemoveWarn, got %v ok=%t", c, ok)
	}
	if _, ok := CategoryFromName("nonexistent"); ok {
		t.Fatal("resolved an unknown category name")
	}
}
