//go:build mage

// Package main provides build targets for dmap using Mage.
//
// Usage:
//
//	mage build          Compile the dmap binary to bin/
//	mage test           Run all tests
//	mage testPure       Run the packages that need no SQLite driver with cgo disabled
//	mage scenarios      Run the harness scenarios through the CLI
//	mage golden         Regenerate harness golden files
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName   = "dmap"
	binaryDir    = "bin"
	cmdDir       = "./cmd/dmap"
	scenariosDir = "internal/harness/testdata/scenarios"
)

// Build compiles the dmap binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestPure runs the packages that need no SQLite driver without cgo.
func TestPure() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "0"},
		"go", "test", "./internal/ir/...", "./internal/kv/...", "./internal/storage/...", "./internal/eventlog/...")
}

// Scenarios builds the binary and runs the harness scenarios through it.
func Scenarios() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binaryDir, binaryName), "test", scenariosDir)
}

// Golden regenerates the harness golden files.
func Golden() error {
	return sh.RunV("go", "test", "./internal/harness", "-run", "TestScenarios", "-update")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}
