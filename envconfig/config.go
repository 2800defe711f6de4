// config.go - Haupt-Konfigurationsfunktionen fuer die SD3.5-Pipeline
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (SD35_DEBUG)
// - NumThreads: Gibt Anzahl der Worker-Threads fuer Tensor-Kernels zurueck (SD35_NUM_THREADS)
// - PreviewInterval: Gibt Schrittabstand fuer Latent-Previews zurueck (SD35_PREVIEW_INTERVAL)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via SD35_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("SD35_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// NumThreads gibt die Anzahl der Worker-Threads fuer Tensor-Kernels zurueck
// Konfigurierbar via SD35_NUM_THREADS
// Default: Anzahl der logischen CPUs
func NumThreads() int {
	if s := Var("SD35_NUM_THREADS"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err != nil || n < 1 {
			slog.Warn("invalid environment variable, using default", "key", "SD35_NUM_THREADS", "value", s, "default", runtime.NumCPU())
		} else {
			return int(n)
		}
	}
	return runtime.NumCPU()
}

// PreviewInterval gibt den Schrittabstand fuer Latent-Previews zurueck
// Konfigurierbar via SD35_PREVIEW_INTERVAL
// 0 = Preview nach jedem Schritt
var PreviewInterval = Uint("SD35_PREVIEW_INTERVAL", 0)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
