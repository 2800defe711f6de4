// config_test.go - Unit Tests fuer die Environment-Konfiguration
//
// Testet LogLevel, NumThreads, Var und die generischen Getter.
package envconfig

import (
	"log/slog"
	"runtime"
	"testing"
)

// TestLogLevel testet die Abbildung von SD35_DEBUG auf slog-Level
func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"f":     slog.LevelInfo,
		"0":     slog.LevelInfo,
		"true":  slog.LevelDebug,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
		"-1":    slog.Level(4),
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SD35_DEBUG", k)
			if i := LogLevel(); i != v {
				t.Errorf("LogLevel = %d, erwartet %d", i, v)
			}
		})
	}
}

// TestNumThreads testet die Worker-Anzahl inkl. Fallback auf NumCPU
func TestNumThreads(t *testing.T) {
	cases := map[string]int{
		"":    runtime.NumCPU(),
		"4":   4,
		"1":   1,
		"0":   runtime.NumCPU(),
		"-2":  runtime.NumCPU(),
		"abc": runtime.NumCPU(),
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SD35_NUM_THREADS", k)
			if n := NumThreads(); n != v {
				t.Errorf("NumThreads = %d, erwartet %d", n, v)
			}
		})
	}
}

// TestVar testet das Trimmen von Quotes und Leerzeichen
func TestVar(t *testing.T) {
	cases := map[string]string{
		"value":       "value",
		" value ":     "value",
		`"value"`:     "value",
		`'value'`:     "value",
		`  "value"  `: "value",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SD35_TEST_VAR", k)
			if s := Var("SD35_TEST_VAR"); s != v {
				t.Errorf("Var = %q, erwartet %q", s, v)
			}
		})
	}
}

// TestUint testet den Uint-Getter mit Default-Wert
func TestUint(t *testing.T) {
	cases := map[string]uint{
		"":    42,
		"0":   0,
		"7":   7,
		"-1":  42,
		"abc": 42,
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SD35_TEST_UINT", k)
			if n := Uint("SD35_TEST_UINT", 42)(); n != v {
				t.Errorf("Uint = %d, erwartet %d", n, v)
			}
		})
	}
}

// TestAsMap prueft, dass alle Variablen exportiert werden
func TestAsMap(t *testing.T) {
	m := AsMap()
	for _, key := range []string{"SD35_DEBUG", "SD35_NUM_THREADS", "SD35_PREVIEW_INTERVAL"} {
		if _, ok := m[key]; !ok {
			t.Errorf("AsMap enthaelt %q nicht", key)
		}
	}
}

// TestValues prueft die String-Darstellung der aktuellen Werte
func TestValues(t *testing.T) {
	t.Setenv("SD35_PREVIEW_INTERVAL", "3")
	vals := Values()
	if got := vals["SD35_PREVIEW_INTERVAL"]; got != "3" {
		t.Errorf("Values[SD35_PREVIEW_INTERVAL] = %q, erwartet \"3\"", got)
	}
}
