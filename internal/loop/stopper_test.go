package loop

import "testing"

func TestStopChecker_Threshold(t *testing.T) {
	checker := NewStopChecker(DefaultStopConfig())

	reason, stop := checker.Check(1, 60)
	if !stop || reason != StopReasonThreshold {
		t.Fatalf("got %q, %v; want threshold stop", reason, stop)
	}
}

func TestStopChecker_MaxIterations(t *testing.T) {
	checker := NewStopChecker(StopConfig{MaxIterations: 3, ScoreThreshold: 100, PlateauDelta: 1})

	for i, s := range []float64{10, 20} {
		if reason, stop := checker.Check(i+1, s); stop {
			t.Fatalf("stopped early at %d: %s", i+1, reason)
		}
	}
	reason, stop := checker.Check(3, 30)
	if !stop || reason != StopReasonMaxIterations {
		t.Fatalf("got %q, %v; want max iterations", reason, stop)
	}
}

func TestStopChecker_Plateau(t *testing.T) {
	checker := NewStopChecker(DefaultStopConfig())

	scores := []float64{40, 40.5, 40.9}
	for i, s := range scores[:2] {
		if reason, stop := checker.Check(i+1, s); stop {
			t.Fatalf("stopped at iteration %d: %s", i+1, reason)
		}
	}
	reason, stop := checker.Check(3, scores[2])
	if !stop || reason != StopReasonPlateau {
		t.Fatalf("got %q, %v; want plateau at iteration 3", reason, stop)
	}
	if checker.PlateauCount() != 2 {
		t.Errorf("PlateauCount = %d, want 2", checker.PlateauCount())
	}
}

func TestStopChecker_ImprovementResetsPlateau(t *testing.T) {
	checker := NewStopChecker(StopConfig{ScoreThreshold: 100, PlateauDelta: 1, PlateauWindow: 2})

	checker.Check(1, 40)
	checker.Check(2, 40.5)
	if checker.PlateauCount() != 1 {
		t.Fatalf("PlateauCount = %d, want 1", checker.PlateauCount())
	}
	checker.Check(3, 45)
	if checker.PlateauCount() != 0 {
		t.Fatalf("improvement should reset, got %d", checker.PlateauCount())
	}
	if _, stop := checker.Check(4, 45.2); stop {
		t.Fatal("a single flat iteration should not stop")
	}
}

func TestStopChecker_RegressionCountsAsPlateau(t *testing.T) {
	checker := NewStopChecker(StopConfig{ScoreThreshold: 100, PlateauDelta: 1, PlateauWindow: 2})

	checker.Check(1, 50)
	checker.Check(2, 30)
	reason, stop := checker.Check(3, 20)
	if !stop || reason != StopReasonPlateau {
		t.Fatalf("got %q, %v; want plateau", reason, stop)
	}
}

func TestStopChecker_ThresholdTakesPriority(t *testing.T) {
	checker := NewStopChecker(StopConfig{MaxIterations: 1, ScoreThreshold: 50, PlateauDelta: 1, PlateauWindow: 1})

	reason, stop := checker.Check(1, 75)
	if !stop || reason != StopReasonThreshold {
		t.Fatalf("got %q, want threshold to take priority", reason)
	}
}
