// Package coerce converts attribute values between their stored and typed
// representations.
//
// A field's conversion is described by a Descriptor written as "kind" or
// "kind:param" (for example "float:2" or "datetime:Y-m-d"). Converter.ToStorage
// runs on every attribute write and Converter.FromStorage on every read.
// Both pass nil through untouched.
//
// Kinds:
//
//	integer     int64, numeric strings parsed by prefix ("12abc" -> 12)
//	float       float64, param = decimal places (rounded half away from zero)
//	boolean     truthiness ("", "0", 0, empty list are false)
//	timestamp   stored as epoch seconds, read as a formatted string
//	datetime    stored as "Y-m-d H:i:s.u", read as a formatted string
//	date        stored as "Y-m-d", read as a formatted string
//	object      stored as a JSON object, read as map[string]any
//	array       stored as a JSON list, read as []any ([] when empty)
//	json        stored as JSON, read as the decoded value
//	serialize   stored as opaque gob bytes, read back as the original value
//	@name       read through the constructor registered under name
//
// Date formats use PHP-style letters (Y m d H i s u ...) so model
// definitions stay portable; see FormatPHP.
//
// The package also carries the loose comparison helpers (Empty, LooseEqual,
// StrictEqual) that change detection relies on.
package coerce
