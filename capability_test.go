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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capRecord(payload ...byte) Record {
	return NewRecord(RecordCapability, payload)
}

func TestDecodeCapability_Fields(t *testing.T) {
	t.Parallel()

	// negotiated, N_WT_MAX=5, NEGO_WAIT, RD_CONF
	c, err := DecodeCapability(capRecord(0x10, 0x40|5<<2|0x03, 0x07, 0x0A, 0x02, 0x03))
	require.NoError(t, err)

	assert.Equal(t, ModeNegotiated, c.Mode)
	assert.Equal(t, uint8(5), c.MaxRetries)
	assert.True(t, c.NegoWait)
	assert.True(t, c.ReadConfirm)
	assert.Equal(t, uint8(7), c.CapWaitExp)
	assert.Equal(t, 1024*time.Millisecond, c.CapWait)
	assert.Equal(t, 100*time.Millisecond, c.NdefReadWait)
	assert.Equal(t, 128*time.Millisecond, c.NdefWriteTimeout)
	assert.Equal(t, uint8(3), c.NdefWriteWaitRaw)
}

func TestDecodeCapability_Clamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		payload      []byte
		capWait      time.Duration
		readWait     time.Duration
		writeTimeout time.Duration
		capWaitExp   uint8
		writeWaitRaw uint8
	}{
		{
			name:         "cap wait floor of 250ms",
			payload:      []byte{0x10, 0x00, 0x00, 0x01, 0x01, 0x00},
			capWaitExp:   0,
			capWait:      250 * time.Millisecond,
			readWait:     10 * time.Millisecond,
			writeTimeout: 64 * time.Millisecond,
		},
		{
			name:         "cap wait exponent clamped to 0x13",
			payload:      []byte{0x10, 0x00, 0x1F, 0x01, 0x04, 0x00},
			capWaitExp:   0x13,
			capWait:      time.Duration(1<<22) * time.Millisecond,
			readWait:     10 * time.Millisecond,
			writeTimeout: 512 * time.Millisecond,
		},
		{
			name:         "read wait zero is fixed",
			payload:      []byte{0x10, 0x00, 0x04, 0x00, 0x01, 0x00},
			capWaitExp:   4,
			capWait:      250 * time.Millisecond,
			readWait:     2540 * time.Millisecond,
			writeTimeout: 64 * time.Millisecond,
		},
		{
			name:         "read wait 0xFF is fixed",
			payload:      []byte{0x10, 0x00, 0x04, 0xFF, 0x01, 0x00},
			capWaitExp:   4,
			capWait:      250 * time.Millisecond,
			readWait:     2540 * time.Millisecond,
			writeTimeout: 64 * time.Millisecond,
		},
		{
			name:         "write timeout zero uses max",
			payload:      []byte{0x10, 0x00, 0x04, 0x01, 0x00, 0x00},
			capWaitExp:   4,
			capWait:      250 * time.Millisecond,
			readWait:     10 * time.Millisecond,
			writeTimeout: 512 * time.Millisecond,
		},
		{
			name:         "write timeout above 4 uses max",
			payload:      []byte{0x10, 0x00, 0x04, 0x01, 0x09, 0x00},
			capWaitExp:   4,
			capWait:      250 * time.Millisecond,
			readWait:     10 * time.Millisecond,
			writeTimeout: 512 * time.Millisecond,
		},
		{
			name:         "write wait clamped to 0x0A",
			payload:      []byte{0x10, 0x00, 0x04, 0x01, 0x01, 0x7F},
			capWaitExp:   4,
			capWait:      250 * time.Millisecond,
			readWait:     10 * time.Millisecond,
			writeTimeout: 64 * time.Millisecond,
			writeWaitRaw: 0x0A,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := DecodeCapability(capRecord(tt.payload...))
			require.NoError(t, err)
			assert.Equal(t, tt.capWaitExp, c.CapWaitExp)
			assert.Equal(t, tt.capWait, c.CapWait)
			assert.Equal(t, tt.readWait, c.NdefReadWait)
			assert.Equal(t, tt.writeTimeout, c.NdefWriteTimeout)
			assert.Equal(t, tt.writeWaitRaw, c.NdefWriteWaitRaw)
		})
	}
}

func TestDecodeCapability_Modes(t *testing.T) {
	t.Parallel()

	for _, mode := range []ModeReq{ModeStatic, ModeNegotiated, ModeBatteryFull} {
		c, err := DecodeCapability(capRecord(0x10, byte(mode)<<6, 0x05, 0x01, 0x01, 0x00))
		require.NoError(t, err, mode.String())
		assert.Equal(t, mode, c.Mode)
	}

	_, err := DecodeCapability(capRecord(0x10, 0xC0, 0x05, 0x01, 0x01, 0x00))
	require.ErrorIs(t, err, ErrInvalidModeReq)
	assert.True(t, IsFormatError(err))
}

func TestDecodeCapability_Rejects(t *testing.T) {
	t.Parallel()

	_, err := DecodeCapability(capRecord(0x10, 0x40, 0x05, 0x01, 0x01))
	require.ErrorIs(t, err, ErrTooShort)

	_, err = DecodeCapability(NewRecord(RecordControl, []byte{0, 0, 0, 0, 0, 0}))
	require.ErrorIs(t, err, ErrWrongRecordType)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "WLCCAP", fe.Record)
	assert.Equal(t, 6, fe.Length)
}

func TestModeReq_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "static", ModeStatic.String())
	assert.Equal(t, "negotiated", ModeNegotiated.String())
	assert.Equal(t, "battery-full", ModeBatteryFull.String())
	assert.Equal(t, "reserved", ModeReserved.String())
}
