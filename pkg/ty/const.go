// Package ty provides utility types and constants shared across the module.
package ty

import "time"

// Format is the standard timestamp format used.
const Format = time.RFC3339

// LB is the line break constant.
const LB = "\n"

// RegexTimestampFormat is the regex string to match RFC3339 timestamps.
const RegexTimestampFormat string = `(([0-9]*)-([0-9]*)-([0-9]*)T([0-9]*):([0-9]*):([0-9]*).([0-9]*)Z?)`
