package measures

import "testing"

func TestPerformanceRate(t *testing.T) {
	tests := []struct {
		name      string
		compliant int
		eligible  int
		excluded  int
		want      float64
	}{
		{"typical cohort", 4, 10, 3, 57.1},
		{"full compliance", 7, 7, 0, 100},
		{"no compliance", 0, 5, 0, 0},
		{"rounds to one decimal", 1, 3, 0, 33.3},
		{"rounds half up", 1, 8, 0, 12.5},
		{"zero base", 0, 0, 0, 0},
		{"all excluded", 0, 3, 3, 0},
		{"excluded exceeds eligible", 1, 2, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PerformanceRate(tt.compliant, tt.eligible, tt.excluded)
			if got != tt.want {
				t.Errorf("PerformanceRate(%d, %d, %d) = %v; want %v",
					tt.compliant, tt.eligible, tt.excluded, got, tt.want)
			}
		})
	}
}

func TestDenominatorBase(t *testing.T) {
	a := &MeasurePopulationAnalysis{Eligible: 10, Excluded: 3}
	if got := a.DenominatorBase(); got != 7 {
		t.Errorf("DenominatorBase() = %d; want 7", got)
	}
}
