// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"testing"

	"code.hybscloud.com/endpoint"
)

// Fixture is a connected pair: bytes written to Client are read from Server and vice versa.
type Fixture struct {
	Client endpoint.Endpoint
	Server endpoint.Endpoint
}

// Config describes a transport under test.
type Config struct {
	// Name identifies the transport in test names and logs.
	Name string

	// CreateFixture returns a fresh pair whose read deliveries use blocks of blockSize bytes.
	// It should fail t rather than return a partial fixture.
	CreateFixture func(t testing.TB, blockSize int) Fixture

	// CleanUp, if set, runs after every scenario.
	CleanUp func()
}
