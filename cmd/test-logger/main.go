package main

import (
	"errors"
	"fmt"

	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
)

func main() {
	fmt.Println("=== Atlas Logger Test ===")

	// Test 1: JSON Format (Production)
	fmt.Println("1. JSON Format (Production)")
	fmt.Println("--------------------------------")
	testJSONFormat()
	fmt.Println()

	// Test 2: Console Format (Development)
	fmt.Println("2. Console Format (Development)")
	fmt.Println("--------------------------------")
	testConsoleFormat()
	fmt.Println()

	// Test 3: Structured Logging
	fmt.Println("3. Structured Logging with Fields")
	fmt.Println("--------------------------------")
	testStructuredLogging()
	fmt.Println()

	// Test 4: Error Logging
	fmt.Println("4. Error Logging")
	fmt.Println("--------------------------------")
	testErrorLogging()
	fmt.Println()

	fmt.Println("✅ All logger tests completed!")
}

func testJSONFormat() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)
	log.Info("Service started")
	log.Warn("FX quote cache miss")
	log.Error("Failed to fetch FX quote")
}

func testConsoleFormat() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "console",
	}

	log := logger.New(cfg)
	log.Debug("Debugging margin task order")
	log.Info("CRIF file loaded")
	log.Warn("Residual bucket found in equity records")
}

func testStructuredLogging() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Single field
	runLog := log.WithField("run_id", "a1b2c3d4")
	runLog.Info("Margin run started")

	// Multiple fields
	cellLog := log.WithFields(map[string]interface{}{
		"side":        "Call",
		"netting_set": "CP-0001",
		"regulation":  "SEC",
		"im":          1234567.89,
	})
	cellLog.Info("Margin cell computed")

	// Chained fields
	log.WithField("module", "splitter").
		WithField("regulation", "CFTC").
		Info("Regulation split started")
}

func testErrorLogging() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Simple error
	err := errors.New("connection timeout")
	log.WithError(err).Error("Failed to fetch FX quote")

	// Error with context
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
			"endpoint":    "/v6/latest/USD",
		}).
		Error("Connection failed after retries")
}
