// Package tool turns the tool declarations of an agent definition into the
// concrete descriptors attached to a Foundry agent version.
//
// The package is split by concern:
//   - declaration: YAML/map decoding and legacy alias resolution
//   - descriptor: the closed set of supported tool kinds
//   - registry: Build, the per-declaration dispatch table
//   - options: typed reads of the free-form options mapping
//   - error: fatal validation errors
//   - observability: advisory warnings and build outcomes
//
// Warnings never fail a build; a ValidationError always does and discards
// every descriptor built so far.
package tool
