package nps

import "testing"

func TestCategorizeEveryScore(t *testing.T) {
	want := map[int]Category{
		0:  CategoryDetractor,
		1:  CategoryDetractor,
		2:  CategoryDetractor,
		3:  CategoryDetractor,
		4:  CategoryDetractor,
		5:  CategoryDetractor,
		6:  CategoryDetractor,
		7:  CategoryPassive,
		8:  CategoryPassive,
		9:  CategoryPromoter,
		10: CategoryPromoter,
	}
	for score := MinScore; score <= MaxScore; score++ {
		if got := Categorize(score); got != want[score] {
			t.Fatalf("Categorize(%d) = %s, want %s", score, got, want[score])
		}
	}
}

func TestValidScore(t *testing.T) {
	for _, score := range []int{-1, 11} {
		if ValidScore(score) {
			t.Fatalf("expected %d to be invalid", score)
		}
	}
	if !ValidScore(0) || !ValidScore(10) {
		t.Fatal("expected bounds to be valid")
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		promoters, detractors, total int64
		want                         float64
	}{
		{promoters: 1, detractors: 0, total: 1, want: 100},
		{promoters: 0, detractors: 1, total: 1, want: -100},
		{promoters: 3, detractors: 1, total: 5, want: 40},
		{promoters: 1, detractors: 0, total: 3, want: 33},
		{promoters: 2, detractors: 0, total: 3, want: 67},
		{promoters: 1, detractors: 0, total: 8, want: 13},
		{promoters: 0, detractors: 1, total: 8, want: -12},
		{promoters: 0, detractors: 0, total: 0, want: 0},
	}
	for _, tc := range cases {
		if got := Score(tc.promoters, tc.detractors, tc.total); got != tc.want {
			t.Fatalf("Score(%d, %d, %d) = %v, want %v", tc.promoters, tc.detractors, tc.total, got, tc.want)
		}
	}
}

func TestResponseRate(t *testing.T) {
	if _, ok := ResponseRate(3, 0); ok {
		t.Fatal("expected no rate when nothing was sent")
	}
	rate, ok := ResponseRate(1, 3)
	if !ok || FormatDecimal(rate) != "33.33" {
		t.Fatalf("expected 33.33, got %v", rate)
	}
	rate, _ = ResponseRate(2, 3)
	if FormatDecimal(rate) != "66.67" {
		t.Fatalf("expected 66.67, got %v", rate)
	}
}

func TestFormatDecimal(t *testing.T) {
	if got := FormatDecimal(100); got != "100.00" {
		t.Fatalf("expected 100.00, got %s", got)
	}
	if got := FormatDecimal(-12); got != "-12.00" {
		t.Fatalf("expected -12.00, got %s", got)
	}
}
