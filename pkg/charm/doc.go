// Package charm models a charm directory tree and its metadata document.
// The metadata document is represented as a tagged variant (scalar, sequence,
// mapping) so that two documents can be merged with field-level rules:
// scalars override, sequences union, mappings recurse.
package charm
