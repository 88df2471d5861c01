// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import "strconv"

// Status is the terminal outcome of an asynchronous read or write.
//
// The numeric values are part of the contract; conformance assertions match on them.
type Status uint8

const (
	// StatusOK: a read delivered data, or a write transmitted every requested byte.
	StatusOK Status = 0
	// StatusError: unrecoverable transport fault.
	StatusError Status = 1
	// StatusTimedOut: the operation deadline elapsed first. A timed-out write may have
	// transmitted a prefix of its blocks; a timed-out read delivers nothing.
	StatusTimedOut Status = 2
	// StatusShutdown: the endpoint (or its peer) was shut down while the operation was
	// outstanding, or before it was issued.
	StatusShutdown Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusShutdown:
		return "SHUTDOWN"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// Err returns nil for StatusOK and the matching sentinel error otherwise.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusTimedOut:
		return ErrTimedOut
	case StatusShutdown:
		return ErrShutdown
	default:
		return ErrTransport
	}
}

// WriteResult is the synchronous outcome of Endpoint.Write.
type WriteResult uint8

const (
	// WriteDone: every byte was accepted synchronously. No callback will fire.
	WriteDone WriteResult = 0
	// WritePending: the write completes later; its callback fires exactly once.
	WritePending WriteResult = 1
	// WriteError: the write was rejected outright. No callback will fire and the
	// endpoint must be treated as unusable.
	WriteError WriteResult = 2
)

func (r WriteResult) String() string {
	switch r {
	case WriteDone:
		return "DONE"
	case WritePending:
		return "PENDING"
	case WriteError:
		return "ERROR"
	default:
		return "WriteResult(" + strconv.Itoa(int(r)) + ")"
	}
}
