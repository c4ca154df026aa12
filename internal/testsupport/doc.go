// Package testsupport provides shared helpers for package tests: temp-dir
// seeded configs, job store setup, and recorder snapshot fixtures.
package testsupport
