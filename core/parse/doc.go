// Package parse turns raw model text into Go values. Language models often
// wrap JSON in prose or markdown code fences, emit almost-JSON (single quotes,
// trailing commas, unquoted keys) or echo a schema envelope instead of data,
// so decoding goes through a layered recovery: candidate extraction, JSON
// repair with jsonrepair, and schema unwrapping, before giving up with an
// error that carries the original text.
//
// The main entry point is the generic [ParseStringAs] function, which handles
// both primitive types and complex types (structs, maps, slices).
package parse
