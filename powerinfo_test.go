// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerInfo_RoundTrip(t *testing.T) {
	t.Parallel()

	in := PowerInfo{
		Ptx:                 100,
		PowerClass:          2,
		TotalPowerSteps:     8,
		CurrentPowerStep:    3,
		NextMinStepIncrease: 1,
		NextMinStepDecrease: 4,
	}
	payload := EncodePowerInfo(in)
	assert.Equal(t, []byte{100, 2, 8, 3, 1, 4}, payload)

	out, err := DecodePowerInfo(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodePowerInfo_TooShort(t *testing.T) {
	t.Parallel()

	_, err := DecodePowerInfo([]byte{1, 2, 3, 4, 5})
	require.ErrorIs(t, err, ErrTooShort)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "WLCINF", fe.Record)
}

func TestEncodeEmptyAck(t *testing.T) {
	t.Parallel()

	ack := EncodeEmptyAck()
	assert.NotNil(t, ack)
	assert.Empty(t, ack)
}
