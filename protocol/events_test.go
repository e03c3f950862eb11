package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusReport(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		want    StatusReport
		wantErr bool
	}{
		{
			name:  "five byte frame has slot 0",
			frame: []byte{0x00, 0x40, 0x00, 0x00, 0x00},
			want:  StatusReport{Flags: 0x40, Slot: 0},
		},
		{
			name:  "six byte frame carries slot verbatim",
			frame: []byte{0x00, 0x40, 0x00, 0x00, 0x00, 0x81},
			want:  StatusReport{Flags: 0x40, Slot: 0x81},
		},
		{
			name:  "all flags",
			frame: []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x00},
			want:  StatusReport{Flags: 0xFFFFFFFF},
		},
		{
			name:    "too short",
			frame:   []byte{0x00, 0x40, 0x00},
			wantErr: true,
		},
		{
			name:    "wrong type",
			frame:   []byte{0x01, 0x40, 0x00, 0x00, 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseStatusReport(tt.frame)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsDecodeError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, report)
		})
	}
}

func TestStatusReportUserProgramRunning(t *testing.T) {
	running, err := ParseStatusReport(BuildStatusReportEvent(StatusUserProgramRunning.Mask(), 0))
	require.NoError(t, err)
	assert.True(t, running.UserProgramRunning())

	idle, err := ParseStatusReport(BuildStatusReportEvent(StatusBLEAdvertising.Mask(), 0))
	require.NoError(t, err)
	assert.False(t, idle.UserProgramRunning())
}

func TestStatusFlagsString(t *testing.T) {
	assert.Equal(t, "none", StatusFlags(0).String())
	assert.Equal(t, "ble-advertising|user-program-running",
		(StatusBLEAdvertising.Mask() | StatusUserProgramRunning.Mask()).String())
	assert.Equal(t, "bit-9", StatusFlag(9).String())
}

func TestParseEventType(t *testing.T) {
	typ, err := ParseEventType([]byte{EventWriteStdout, 'x'})
	require.NoError(t, err)
	assert.Equal(t, byte(EventWriteStdout), typ)
	assert.True(t, IsKnownEvent(typ))

	typ, err = ParseEventType([]byte{0x7F})
	require.NoError(t, err, "unknown types pass through")
	assert.False(t, IsKnownEvent(typ))

	_, err = ParseEventType(nil)
	assert.Error(t, err)
}

func TestParseWriteStdout(t *testing.T) {
	text, err := ParseWriteStdout(BuildWriteStdoutEvent("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", text)

	text, err = ParseWriteStdout([]byte{EventWriteStdout})
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = ParseWriteStdout([]byte{EventStatusReport})
	assert.Error(t, err)
}

func TestParseWriteAppData(t *testing.T) {
	data, err := ParseWriteAppData([]byte{EventWriteAppData, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	_, err = ParseWriteAppData([]byte{EventWriteStdout})
	assert.Error(t, err)
}

func TestParseHubCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    HubCapabilities
		wantErr bool
	}{
		{
			name: "ten bytes",
			data: []byte{0x9E, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x80, 0x00, 0x00},
			want: HubCapabilities{
				MaxWriteSize:       158,
				Flags:              CapabilityHasRepl | CapabilityUserProgramMultiMpy6,
				MaxUserProgramSize: 32768,
			},
		},
		{
			name: "with slot count",
			data: []byte{0x14, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x05},
			want: HubCapabilities{
				MaxWriteSize:       20,
				Flags:              CapabilityUserProgramMultiMpy6,
				MaxUserProgramSize: 256,
				NumSlots:           5,
			},
		},
		{
			name:    "too short",
			data:    []byte{0x14, 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := ParseHubCapabilities(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, caps)
		})
	}
}

func TestHubCapabilitiesChunkSize(t *testing.T) {
	assert.Equal(t, 15, DefaultHubCapabilities().ChunkSize())
	assert.Equal(t, 1, HubCapabilities{MaxWriteSize: MinWriteSize}.ChunkSize())
	assert.Equal(t, 0, HubCapabilities{MaxWriteSize: 5}.ChunkSize())
	assert.True(t, HubCapabilities{Flags: CapabilityHasRepl}.Has(CapabilityHasRepl))
}

func TestParsePnPID(t *testing.T) {
	pnp, err := ParsePnPID([]byte{0x01, 0x97, 0x03, 0x40, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, PnPID{VendorIDSource: 1, VendorID: 0x0397, ProductID: 0x40}, pnp)

	_, err = ParsePnPID([]byte{0x01})
	assert.Error(t, err)
}

func TestBuildHubCapabilities(t *testing.T) {
	caps := HubCapabilities{
		MaxWriteSize:       158,
		Flags:              CapabilityHasRepl | CapabilityUserProgramMultiMpy6,
		MaxUserProgramSize: 32 * 1024,
		NumSlots:           5,
	}

	got, err := ParseHubCapabilities(BuildHubCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, caps, got)
}

func TestBuildPnPID(t *testing.T) {
	id := PnPID{VendorIDSource: 1, VendorID: 0x0397, ProductID: 0x83, ProductVersion: 2}

	got, err := ParsePnPID(BuildPnPID(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func FuzzStatusReportRoundTrip(f *testing.F) {
	f.Add(uint32(0), uint8(0))
	f.Add(uint32(1<<6), uint8(0x80))
	f.Add(uint32(0xFFFFFFFF), uint8(0xFF))

	f.Fuzz(func(t *testing.T, flags uint32, slot uint8) {
		report, err := ParseStatusReport(BuildStatusReportEvent(StatusFlags(flags), slot))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Flags != StatusFlags(flags) || report.Slot != slot {
			t.Fatalf("round trip = %+v, want flags 0x%08X slot %d", report, flags, slot)
		}
	})
}
