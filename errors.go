// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import "errors"

var (
	// ErrInvalidArgument reports an invalid configuration or a nil endpoint/connection.
	ErrInvalidArgument = errors.New("endpoint: invalid argument")

	// ErrReleased reports use of a block after its last reference was released.
	ErrReleased = errors.New("endpoint: block already released")

	// ErrTransport is the error form of StatusError.
	ErrTransport = errors.New("endpoint: transport error")

	// ErrTimedOut is the error form of StatusTimedOut.
	ErrTimedOut = errors.New("endpoint: deadline exceeded")

	// ErrShutdown is the error form of StatusShutdown.
	ErrShutdown = errors.New("endpoint: shut down")

	// ErrClosed reports an operation on a closed Stream.
	ErrClosed = errors.New("endpoint: stream closed")
)
