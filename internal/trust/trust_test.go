package trust

import (
	"math/rand"
	"testing"

	"github.com/noface-00/prims/internal/model"
)

func TestScore_TopSeller(t *testing.T) {
	in := model.TrustInputs{
		CurrentPrice:    100,
		MarketMean:      100,
		MarketStdDev:    10,
		FeedbackPercent: 99.8,
		FeedbackScore:   25000,
		AccountAge:      "8 años 2 meses",
	}
	if got := Score(in); got != 100 {
		t.Errorf("Expected 100, got %v", got)
	}
}

func TestCompute_Breakdown(t *testing.T) {
	in := model.TrustInputs{
		CurrentPrice:    85, // z = 1.5
		MarketMean:      100,
		MarketStdDev:    10,
		FeedbackPercent: 96,
		FeedbackScore:   750,
		AccountAge:      "7 meses",
	}
	b := Compute(in)

	if b.Price != 25 {
		t.Errorf("Expected price 25, got %v", b.Price)
	}
	if b.Feedback != 22 {
		t.Errorf("Expected feedback 22, got %v", b.Feedback)
	}
	if b.Volume != 12 {
		t.Errorf("Expected volume 12, got %v", b.Volume)
	}
	if b.Age != 3.5 {
		t.Errorf("Expected age 3.5, got %v", b.Age)
	}
	if b.Total != 62.5 {
		t.Errorf("Expected total 62.5, got %v", b.Total)
	}
}

func TestScore_MissingSellerData(t *testing.T) {
	in := model.TrustInputs{CurrentPrice: 100, MarketMean: 100, MarketStdDev: 5}
	if got := Score(in); got != 35 {
		t.Errorf("Expected only the price component (35), got %v", got)
	}

	if got := Score(model.TrustInputs{}); got != 0 {
		t.Errorf("Expected 0 for empty inputs, got %v", got)
	}
}

func TestPriceScore(t *testing.T) {
	tests := []struct {
		price, mean, std float64
		want             float64
	}{
		{100, 100, 10, 35},
		{110, 100, 10, 35},
		{120, 100, 10, 25},
		{70, 100, 10, 10},
		{60, 100, 10, 0},
		{100, 0, 10, 0},
		{100, 100, 0, 0},
	}
	for _, tt := range tests {
		if got := priceScore(tt.price, tt.mean, tt.std); got != tt.want {
			t.Errorf("priceScore(%v, %v, %v) = %v, want %v", tt.price, tt.mean, tt.std, got, tt.want)
		}
	}
}

func TestFeedbackAndVolumeScores(t *testing.T) {
	feedback := map[float64]float64{100: 30, 99: 30, 98.5: 27, 95: 22, 92: 15, 80: 5, 79.9: 0}
	for pct, want := range feedback {
		if got := feedbackScore(pct); got != want {
			t.Errorf("feedbackScore(%v) = %v, want %v", pct, got, want)
		}
	}

	volume := map[int]float64{10000: 20, 5000: 18, 1000: 15, 500: 12, 100: 8, 50: 5, 10: 2, 9: 0, 0: 0}
	for n, want := range volume {
		if got := volumeScore(n); got != want {
			t.Errorf("volumeScore(%v) = %v, want %v", n, got, want)
		}
	}
}

func TestAgeScore(t *testing.T) {
	tests := []struct {
		descriptor string
		want       float64
	}{
		{"3 años 4 meses", 7.5},
		{"1 año", 2.5},
		{"10 años 0 meses", 15},
		{"7 meses", 3.5},
		{"20 meses", 6},
		{"0 meses", 0},
		{"Sin publicaciones recientes", 0},
		{"No disponible", 0},
		{"muchos años", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := AgeScore(tt.descriptor); got != tt.want {
			t.Errorf("AgeScore(%q) = %v, want %v", tt.descriptor, got, tt.want)
		}
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ages := []string{"", "2 años", "5 meses", "99 años", "garbage"}

	for i := 0; i < 1000; i++ {
		in := model.TrustInputs{
			CurrentPrice:    rng.Float64() * 500,
			MarketMean:      rng.Float64() * 500,
			MarketStdDev:    rng.Float64() * 100,
			FeedbackPercent: rng.Float64() * 100,
			FeedbackScore:   rng.Intn(50000),
			AccountAge:      ages[rng.Intn(len(ages))],
		}
		if got := Score(in); got < 0 || got > 100 {
			t.Fatalf("Score out of range for %+v: %v", in, got)
		}
	}
}

func TestScore_MonotonicInFeedbackPercent(t *testing.T) {
	base := model.TrustInputs{
		CurrentPrice:  95,
		MarketMean:    100,
		MarketStdDev:  8,
		FeedbackScore: 1200,
		AccountAge:    "2 años 1 meses",
	}

	prev := -1.0
	for pct := 0.0; pct <= 100; pct += 0.5 {
		in := base
		in.FeedbackPercent = pct
		got := Score(in)
		if got < prev {
			t.Fatalf("Score decreased from %v to %v at feedback %v%%", prev, got, pct)
		}
		prev = got
	}
}
