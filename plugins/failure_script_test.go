package plugins

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/acta/internal/failure"
	"github.com/kingrea/acta/internal/params"
)

const weibullScript = `package main

import "math"

var lam = 10.0

func Configure(vars map[string]float64) error {
	if v, ok := vars["lam"]; ok {
		lam = v
	}
	return nil
}

func Probability(h, dh float64) float64 {
	return 1 - math.Exp(-math.Pow((h+dh)/lam, 2)+math.Pow(h/lam, 2))
}
`

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return dir
}

func TestScriptFailureModelMatchesWeibull(t *testing.T) {
	dir := writeScript(t, "hazard.go", weibullScript)
	reg := failure.DefaultRegistry()
	RegisterFailureScript(reg)
	m, err := reg.Resolve("script", params.Map{"path": "hazard.go", "vars": map[string]any{"lam": 20.0}}, dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := failure.Weibull{K: 2, Lambda: 20}
	for _, h := range []float64{0, 1, 5, 30} {
		if got, exp := m.Probability(h, 1.5), want.Probability(h, 1.5); math.Abs(got-exp) > 1e-9 {
			t.Fatalf("Probability(%v) = %v, want %v", h, got, exp)
		}
	}
	if got := m.Probability(3, 0); got != 0 {
		t.Fatalf("zero increment must not fail, got %v", got)
	}
	if got, exp := m.Cumulative(10), want.Cumulative(10); math.Abs(got-exp) > 1e-9 {
		t.Fatalf("Cumulative = %v, want %v", got, exp)
	}
}

func TestScriptFailureModelClampsAndUsesCumulative(t *testing.T) {
	dir := writeScript(t, "wild.go", `package main

func Probability(h, dh float64) float64 { return 7 }
func Cumulative(h float64) float64 { return -1 }
`)
	m, err := LoadFailureScript(filepath.Join(dir, "wild.go"), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Probability(0, 1) != 1 || m.Cumulative(4) != 0 {
		t.Fatalf("expected clamped results")
	}
}

func TestScriptFailureModelRequiresProbability(t *testing.T) {
	dir := writeScript(t, "broken.go", "package main\n\nfunc Probability(h float64) float64 { return 0 }\n")
	if _, err := LoadFailureScript(filepath.Join(dir, "broken.go"), nil); err == nil {
		t.Fatalf("expected signature error")
	}
	reg := failure.NewRegistry()
	RegisterFailureScript(reg)
	if _, err := reg.Resolve("script", params.Map{}, dir); err == nil {
		t.Fatalf("expected missing path error")
	}
}
