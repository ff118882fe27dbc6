/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package engine

import (
	"encoding/hex"
	"errors"

	"github.com/velocity-sp/mvdctl/coap"
)

// Error definitions
var (
	ErrTimeout   = errors.New("request timed out")
	ErrCancelled = errors.New("request cancelled")
	ErrReset     = errors.New("device reset the exchange")
	ErrParse     = errors.New("malformed response")
)

// ClientError is a 4.xx response from the device. Not retried.
type ClientError struct {
	Code  coap.Code
	Path  string
	Token []byte
}

func (e *ClientError) Error() string {
	return "client error " + e.Code.String() + " on /" + e.Path +
		" (token " + hex.EncodeToString(e.Token) + ")"
}

// ServerError is a 5.xx response from the device. Not retried at this layer.
type ServerError struct {
	Code  coap.Code
	Path  string
	Token []byte
}

func (e *ServerError) Error() string {
	return "server error " + e.Code.String() + " on /" + e.Path +
		" (token " + hex.EncodeToString(e.Token) + ")"
}
