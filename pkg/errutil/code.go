// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package errutil

import "github.com/samber/oops"

// Code returns the oops error code carried by err, or "" when err is nil,
// not an oops error, or has no code. oops reports the deepest code in a
// wrap chain, so the code set closest to the failure wins.
func Code(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// HasCode reports whether err carries the given oops code.
func HasCode(err error, code string) bool {
	return code != "" && Code(err) == code
}
