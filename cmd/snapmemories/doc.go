// Package main hosts the snapmemories CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the download,
// verification, compositing, and timezone passes in internal/. It centralizes
// configuration resolution, single-instance locking, capability detection,
// and structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
