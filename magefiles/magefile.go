//go:build mage

// Package main provides build targets for the extend project using Mage.
//
// Usage:
//
//	mage build             Compile extendctl binary to bin/
//	mage test:all          Run all tests (unit + integration)
//	mage test:unit         Run only unit tests (exclude integration)
//	mage test:integration  Run only integration tests (builds first)
//	mage test:postgres     Run the store tests against a postgres container
//	mage test:cover        Write coverage.out for the unit packages
//	mage vet               Run go vet
//	mage lint              Run go vet and golangci-lint
//	mage clean             Remove build artifacts
//	mage install           Install extendctl to GOPATH/bin
package main

import "github.com/magefile/mage/mg"

// Default target when mage is run without arguments.
var Default = Build

// All builds, lints and runs every test.
func All() {
	mg.SerialDeps(Build, Lint, Test.All)
}
