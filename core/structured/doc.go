// Package structured turns a single model call into a typed record.
//
// An [Extractor] derives a JSON schema from its record type with
// google/jsonschema-go, asks the provider for a JSON answer that follows it,
// and classifies what came back as an [Outcome]:
//
//   - [Parsed] holds the decoded record and the raw response
//   - [Malformed] holds the raw text that could not be decoded or validated
//   - [TransportFailure] holds the error returned by the provider
//
// The extractor never returns an error for a bad answer: callers switch on
// the outcome and decide how to record it.
package structured
