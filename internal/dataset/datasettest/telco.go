// Package datasettest builds deterministic synthetic datasets for tests.
package datasettest

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/spboyer/churnkit/internal/dataset"
)

// TelcoHeader is the column layout produced by Telco.
var TelcoHeader = []string{
	"customerID", "gender", "SeniorCitizen", "Partner", "tenure", "PhoneService",
	"InternetService", "OnlineSecurity", "TechSupport", "StreamingTV", "Contract",
	"MonthlyCharges", "TotalCharges", "Churn",
}

var (
	contracts = []string{"Month-to-month", "One year", "Two year"}
	internet  = []string{"DSL", "Fiber optic", "No"}
)

// TelcoRecords returns n telecom-style customer records. Churn is driven by
// month-to-month contracts, short tenure and high charges, with a little
// noise, so trained models separate the classes well.
func TelcoRecords(n int, seed int64) [][]string {
	rng := rand.New(rand.NewSource(seed))
	yesNo := func(p float64) string {
		if rng.Float64() < p {
			return "Yes"
		}
		return "No"
	}

	records := make([][]string, n)
	for i := range records {
		contract := contracts[rng.Intn(len(contracts))]
		tenure := 1 + rng.Intn(72)
		monthly := math.Round((20+rng.Float64()*100)*100) / 100
		total := math.Round(monthly*float64(tenure)*100) / 100

		risk := 0.05
		if contract == "Month-to-month" {
			risk += 0.45
		}
		if tenure < 12 {
			risk += 0.3
		}
		if monthly > 90 {
			risk += 0.1
		}
		churn := "No"
		if rng.Float64() < risk {
			churn = "Yes"
		}

		gender := "Male"
		if rng.Intn(2) == 0 {
			gender = "Female"
		}
		senior := "0"
		if rng.Float64() < 0.2 {
			senior = "1"
		}

		records[i] = []string{
			fmt.Sprintf("C%05d", i+1),
			gender,
			senior,
			yesNo(0.5),
			fmt.Sprint(tenure),
			yesNo(0.9),
			internet[rng.Intn(len(internet))],
			yesNo(0.6),
			yesNo(0.6),
			yesNo(0.55),
			contract,
			fmt.Sprintf("%.2f", monthly),
			fmt.Sprintf("%.2f", total),
			churn,
		}
	}
	return records
}

// Telco builds a frame of n synthetic telecom customers.
func Telco(t testing.TB, n int) *dataset.Frame {
	t.Helper()
	return Frame(t, TelcoHeader, TelcoRecords(n, 7))
}

// Frame builds a frame from a header and records, failing the test on error.
func Frame(t testing.TB, header []string, records [][]string) *dataset.Frame {
	t.Helper()
	f, err := dataset.FromRecords(header, records)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	return f
}
