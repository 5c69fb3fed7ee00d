// Package httputil provides HTTP response helpers for the retouch API.
//
// # Overview
//
//   - [WriteJSON]: encode a payload with a status code
//   - [WriteError]: map an error to a status and a JSON error body
//   - [StatusFor]: the error-code to HTTP-status table
//
// # Errors
//
// Handlers return structured errors from pkg/errors. [WriteError] turns the
// code into a status (413 for oversized uploads, 422 for undecodable images,
// 503 when effects are unavailable and so on) and writes:
//
//	{"error": {"code": "OVERSIZED_INPUT", "message": "file size exceeds 2MB"}}
//
// Internal errors never leak their message; clients see a generic text and
// the server logs the cause.
package httputil
