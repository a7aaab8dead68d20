package ld2460

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

func TestDecoder(t *testing.T) {
	at := time.Unix(1700000000, 0)
	conf := DefaultConfig()
	d := &Decoder{Bounds: conf.Bounds()}

	testCases := []struct {
		name    string
		data    []byte
		records [][2]float64
		err     bool
	}{
		{name: "no targets", data: []byte{0x04}},
		{
			name:    "two targets",
			data:    []byte{0x04, 0x0f, 0x00, 0x14, 0x00, 0xfd, 0xff, 0x28, 0x00},
			records: [][2]float64{{1.5, 2}, {-0.3, 4}},
		},
		{
			name:    "extra targets ignored",
			data:    EncodeReport([][2]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 6}}...),
			records: [][2]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}},
		},
		{name: "truncated", data: []byte{0x04, 0x0f, 0x00, 0x14}, err: true},
		{name: "not upload", data: []byte{0x05}, err: true},
		{name: "empty", data: []byte{}, err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := d.Decode(tc.data, at)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, at, r.At)
			require.Len(t, r.Records, len(tc.records))
			for i, xy := range tc.records {
				rec := r.Records[i]
				require.True(t, rec.Valid())
				require.True(t, rec.Cartesian)
				require.InDelta(t, xy[0], rec.X, 1e-9)
				require.InDelta(t, xy[1], rec.Y, 1e-9)
				require.ElementsMatch(t, []telemetry.Attr{
					telemetry.AttrSpeed, telemetry.AttrSignalStrength, telemetry.AttrDirection,
				}, rec.Unset)
			}
		})
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	conf := DefaultConfig()
	d := &Decoder{Bounds: conf.Bounds()}
	r, err := d.Decode(EncodeReport([2]float64{30, 20}), time.Now())
	require.NoError(t, err)
	require.Len(t, r.Records, 1)
	require.False(t, r.Records[0].Valid())
}

func TestCodecs(t *testing.T) {
	ip := InstallParams{Height: 2.6, Angle: 30}
	require.Equal(t, []byte{0x04, 0x01, 0xb8, 0x0b}, ip.encode())
	decoded, err := decodeInstallParams(ip.encode())
	require.NoError(t, err)
	require.Equal(t, ip, decoded)

	dr := DetectRange{Distance: 6, StartAngle: -45, EndAngle: 45}
	require.Equal(t, []byte{60, 0x3e, 0xfe, 0xc2, 0x01}, dr.encode())
	decodedRange, err := decodeDetectRange(dr.encode())
	require.NoError(t, err)
	require.Equal(t, dr, decodedRange)

	ver, err := decodeVersion([]byte{0x01, 24, 7, 1, 2})
	require.NoError(t, err)
	require.Equal(t, "2024-07 V1.2", ver)
	_, err = decodeVersion([]byte{0x01, 24})
	require.Equal(t, ErrShortReply, err)

	require.NoError(t, checkAck(CmdSetMode, []byte{0x01}))
	require.ErrorIs(t, checkAck(CmdSetMode, []byte{0x00}), ErrRejected)
}
