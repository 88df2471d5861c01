// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint_test

import (
	"testing"

	"code.hybscloud.com/endpoint"
	"github.com/stretchr/testify/assert"
)

func TestStatus_Values(t *testing.T) {
	assert.EqualValues(t, 0, endpoint.StatusOK)
	assert.EqualValues(t, 1, endpoint.StatusError)
	assert.EqualValues(t, 2, endpoint.StatusTimedOut)
	assert.EqualValues(t, 3, endpoint.StatusShutdown)

	assert.EqualValues(t, 0, endpoint.WriteDone)
	assert.EqualValues(t, 1, endpoint.WritePending)
	assert.EqualValues(t, 2, endpoint.WriteError)
}

func TestStatus_String(t *testing.T) {
	cases := map[endpoint.Status]string{
		endpoint.StatusOK:       "OK",
		endpoint.StatusError:    "ERROR",
		endpoint.StatusTimedOut: "TIMED_OUT",
		endpoint.StatusShutdown: "SHUTDOWN",
		endpoint.Status(9):      "Status(9)",
	}
	for st, want := range cases {
		assert.Equal(t, want, st.String())
	}

	assert.Equal(t, "DONE", endpoint.WriteDone.String())
	assert.Equal(t, "PENDING", endpoint.WritePending.String())
	assert.Equal(t, "ERROR", endpoint.WriteError.String())
	assert.Equal(t, "WriteResult(7)", endpoint.WriteResult(7).String())
}

func TestStatus_Err(t *testing.T) {
	assert.NoError(t, endpoint.StatusOK.Err())
	assert.ErrorIs(t, endpoint.StatusError.Err(), endpoint.ErrTransport)
	assert.ErrorIs(t, endpoint.StatusTimedOut.Err(), endpoint.ErrTimedOut)
	assert.ErrorIs(t, endpoint.StatusShutdown.Err(), endpoint.ErrShutdown)
	assert.ErrorIs(t, endpoint.Status(200).Err(), endpoint.ErrTransport)
}
