// Package compose implements the charm composition engine: it layers a delta
// directory over a base charm tree and produces a merged output charm.
// The pipeline is strictly sequential: load manifest -> resolve base -> copy
// base tree -> merge metadata -> apply hook diversions -> apply file rules ->
// write metadata -> write signatures. Any stage failure is terminal for the
// run; no rollback of the partially written output is attempted.
package compose
