//go:build mage

/*
Copyright 2026

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package main

import (
	"os"

	"github.com/magefile/mage/sh"
)

// Build compiles the kline-scan binary.
func Build() error {
	return sh.Run("go", "build", "-o", "kline-scan", ".")
}

// Test runs the full test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Lint vets the source tree.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes the built binary.
func Clean() error {
	return os.Remove("kline-scan")
}
