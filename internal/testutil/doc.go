// Package testutil provides deterministic stand-ins for the engine's clock
// and identity generator, shared by package tests and the scenario harness.
package testutil
