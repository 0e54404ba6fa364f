package geom

import "testing"

func TestRoundTo(t *testing.T) {
	tests := []struct {
		name string
		v    int
		base int
		step int
		want int
	}{
		{name: "no step", v: 101, step: 0, want: 101},
		{name: "round down", v: 99, step: 8, want: 96},
		{name: "round up", v: 101, step: 8, want: 104},
		{name: "exact", v: 96, step: 8, want: 96},
		{name: "with base", v: 13, base: 2, step: 5, want: 12},
		{name: "below base", v: -3, base: 0, step: 4, want: -4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundTo(tt.v, tt.base, tt.step); got != tt.want {
				t.Errorf("RoundTo(%d, %d, %d) = %d, want %d", tt.v, tt.base, tt.step, got, tt.want)
			}
		})
	}
}

func TestMarginExpandShrink(t *testing.T) {
	m := Margin{Left: 4, Right: 4, Top: 28, Bottom: 4}
	got := m.Expand(Extent{200, 150})
	if got != (Extent{208, 182}) {
		t.Fatalf("Expand = %+v, want 208x182", got)
	}
	if back := m.Shrink(got); back != (Extent{200, 150}) {
		t.Fatalf("Shrink = %+v, want 200x150", back)
	}
}

func TestRectContains(t *testing.T) {
	r := NewRect(10, 10, 100, 50)
	if !r.Contains(Offset{10, 10}) {
		t.Error("top-left corner should be inside")
	}
	if r.Contains(Offset{110, 20}) {
		t.Error("right edge is exclusive")
	}
	if c := r.Center(); c != (Offset{60, 35}) {
		t.Errorf("Center = %+v", c)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{v: 5, lo: 1, hi: 10, want: 5},
		{v: -1, lo: 1, hi: 10, want: 1},
		{v: 70000, lo: 1, hi: MaxDim, want: MaxDim},
		{v: -40000, lo: MinCoord, hi: MaxCoord, want: MinCoord},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
