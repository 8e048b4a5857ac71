//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	integrationDir = "tests"
	coverageFile   = "coverage.out"
)

// Test groups test targets (all, unit, integration, postgres, cover).
type Test mg.Namespace

// All runs all tests (unit and integration).
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs package tests under -race, excluding tests/. -short skips the
// container-backed store tests.
func (Test) Unit() error {
	pkgs, err := unitPackages()
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	return sh.RunV(binGo, append([]string{"test", "-race", "-short"}, pkgs...)...)
}

// Integration builds extendctl, then runs the CLI tests in tests/.
func (Test) Integration() error {
	if _, err := os.Stat(integrationDir); os.IsNotExist(err) {
		fmt.Println("No integration test directory found (tests/).")
		return nil
	}
	mg.Deps(Build)
	return sh.RunV(binGo, "test", "-count=1", "./"+integrationDir+"/...")
}

// Postgres runs the store contract tests against a disposable postgres
// container. Needs a working docker or podman.
func (Test) Postgres() error {
	return sh.RunV(binGo, "test", "-count=1", "-run", "TestPostgres", "./internal/store/")
}

// Cover writes a coverage profile of the unit packages and prints the
// per-function summary.
func (Test) Cover() error {
	pkgs, err := unitPackages()
	if err != nil {
		return err
	}
	args := append([]string{"test", "-short", "-coverprofile", coverageFile}, pkgs...)
	if err := sh.RunV(binGo, args...); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", coverageFile)
}

// unitPackages lists module packages outside tests/.
func unitPackages() ([]string, error) {
	out, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return nil, err
	}
	var pkgs []string
	for pkg := range strings.SplitSeq(out, "\n") {
		if pkg == "" || strings.Contains(pkg, "/"+integrationDir+"/") || strings.HasSuffix(pkg, "/"+integrationDir) {
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}
