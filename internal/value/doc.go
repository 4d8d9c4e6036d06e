// Package value defines the data carried on node ports.
//
// A PortValue is a sealed union over a closed set of variants (numbers,
// positions, sizes, colors, scroll enums, pulses, media references and so
// on). Every port carries a Loop: an ordered, never empty slice of
// PortValues. When a node reads several loops of different lengths they
// are reconciled by cyclic lengthening to the longest length.
//
// Arithmetic on values is defined component-wise for vector variants and
// division is zero-safe: dividing by zero yields zero instead of an
// infinity or NaN.
package value
