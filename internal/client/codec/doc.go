// Package codec translates gposync domain records to and from the gpodder.net
// API v2 JSON schema.
//
// Every function is pure. Decoding is strict: a missing required field, a
// value of the wrong JSON type or an unknown enum value fails with a
// *common.DecodeError naming the offending path (for example
// "actions.3.position"). Fields the schema does not know about are ignored so
// that additive server changes do not break older clients.
//
// Timestamps are accepted either as ISO 8601 strings (a missing zone means
// UTC) or as integer seconds since the epoch, and are always encoded as
// "2006-01-02T15:04:05" in UTC.
//
// Request bodies are assembled with github.com/tidwall/sjson and responses are
// walked with github.com/tidwall/gjson, which keeps field paths available for
// error reporting without intermediate DTO structs.
package codec
