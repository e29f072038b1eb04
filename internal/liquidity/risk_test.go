package liquidity

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAssessRiskBoundaries(t *testing.T) {
	cases := []struct {
		impact string
		apy    string
		want   string
	}{
		{"0", "0", RiskVeryLow},
		{"1", "0", RiskVeryLow},
		{"1.0001", "0", RiskLow},
		{"2", "0", RiskLow},
		{"2.01", "0", RiskMedium},
		{"5", "0", RiskMedium},
		{"5.01", "0", RiskHigh},
		{"10", "0", RiskHigh},
		{"10.01", "0", RiskVeryHigh},
		{"0", "20", RiskVeryLow},
		{"0", "20.5", RiskLow},
		{"0", "50.5", RiskMedium},
		{"0", "100.5", RiskHigh},
		{"0", "200.5", RiskVeryHigh},
		{"0.5", "150", RiskHigh},
	}
	for _, tc := range cases {
		if got := AssessRisk(dec(tc.impact), dec(tc.apy)); got != tc.want {
			t.Fatalf("AssessRisk(%s, %s) = %q, want %q", tc.impact, tc.apy, got, tc.want)
		}
	}
}

func TestAssessRiskMonotonicInImpact(t *testing.T) {
	rank := map[string]int{RiskVeryLow: 0, RiskLow: 1, RiskMedium: 2, RiskHigh: 3, RiskVeryHigh: 4}
	for _, apy := range []string{"0", "30", "75", "150", "250"} {
		prev := -1
		for i := 0; i <= 300; i++ {
			impact := decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(20))
			r := rank[AssessRisk(impact, dec(apy))]
			if r < prev {
				t.Fatalf("risk decreased at impact=%s apy=%s", impact, apy)
			}
			prev = r
		}
	}
}

func TestEstimateImpermanentLossBuckets(t *testing.T) {
	cases := map[string]string{
		"0":    "Minimal (<0.1%)",
		"0.5":  "Minimal (<0.1%)",
		"0.51": "Low (0.1-0.5%)",
		"2":    "Low (0.1-0.5%)",
		"3":    "Medium (0.5-2%)",
		"6":    "High (2-5%)",
		"11":   "Very High (>5%)",
	}
	for impact, want := range cases {
		if got := EstimateImpermanentLoss(dec(impact)); got != want {
			t.Fatalf("EstimateImpermanentLoss(%s) = %q, want %q", impact, got, want)
		}
	}
}

func TestImpermanentLossFormula(t *testing.T) {
	if !ImpermanentLoss(dec("1")).IsZero() {
		t.Fatalf("no price move should mean no loss")
	}
	got := ImpermanentLoss(dec("2"))
	if got.Sub(dec("-0.0572")).Abs().GreaterThan(dec("0.0001")) {
		t.Fatalf("2x move loss = %s, want about -0.0572", got)
	}
	if !ImpermanentLoss(decimal.Zero).IsZero() {
		t.Fatalf("zero ratio should yield zero")
	}
}
