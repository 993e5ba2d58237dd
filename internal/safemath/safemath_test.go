package safemath

import (
	"math"
	"testing"
)

func TestAdd64(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint64
		want   uint64
		wantOK bool
	}{
		{"zero plus zero", 0, 0, 0, true},
		{"small values", 700_000_000, 350_000_000, 1_050_000_000, true},
		{"at boundary", math.MaxUint64 - 1, 1, math.MaxUint64, true},
		{"overflow max plus one", math.MaxUint64, 1, 0, false},
		{"overflow max plus max", math.MaxUint64, math.MaxUint64, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Add64(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Errorf("Add64(%d, %d) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
				return
			}
			if ok && got != tt.want {
				t.Errorf("Add64(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSub64(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint64
		want   uint64
		wantOK bool
	}{
		{"equal values", 5, 5, 0, true},
		{"positive result", 10, 3, 7, true},
		{"underflow", 3, 10, 0, false},
		{"zero minus one", 0, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sub64(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Errorf("Sub64(%d, %d) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
				return
			}
			if ok && got != tt.want {
				t.Errorf("Sub64(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMul64(t *testing.T) {
	if got, ok := Mul64(1<<32, 1<<31); !ok || got != 1<<63 {
		t.Errorf("Mul64(2^32, 2^31) = %d, %v", got, ok)
	}
	if _, ok := Mul64(1<<32, 1<<32); ok {
		t.Errorf("Mul64(2^32, 2^32) should overflow")
	}
}

func TestMulDiv64(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d uint64
		want    uint64
		wantOK  bool
	}{
		{"premium at 150 percent", 700_000_000, 150, 100, 1_050_000_000, true},
		{"truncates", 1, 150, 100, 1, true},
		{"wide intermediate", math.MaxUint64, 150, 200, 3<<62 - 1, true},
		{"quotient overflows", math.MaxUint64, 150, 100, 0, false},
		{"division by zero", 1, 1, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MulDiv64(tt.a, tt.b, tt.d)
			if ok != tt.wantOK {
				t.Errorf("MulDiv64(%d, %d, %d) ok = %v, want %v", tt.a, tt.b, tt.d, ok, tt.wantOK)
				return
			}
			if ok && got != tt.want {
				t.Errorf("MulDiv64(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.d, got, tt.want)
			}
		})
	}
}
