package network

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, topology := range [][]int{{1, 1}, {2, 3, 1}, {5, 7, 7, 3}} {
		nn := newTestNetwork(t, topology, 99)

		data, err := nn.MarshalBinary()
		require.NoError(t, err)
		got, err := UnmarshalNetwork(data)
		require.NoError(t, err)

		assert.Equal(t, nn.Topology(), got.Topology())
		assert.True(t, nn.Equal(got), "topology %v", topology)
	}
}

func TestRoundTripAfterTraining(t *testing.T) {
	nn := newTestNetwork(t, []int{2, 3, 1}, 4)
	require.NoError(t, nn.Train(testDataset(6), 5, 4, 0.9))

	var buf bytes.Buffer
	require.NoError(t, nn.Encode(&buf))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, nn.Equal(got))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.nn")
	nn := newTestNetwork(t, []int{3, 2, 2}, 12)
	require.NoError(t, nn.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.True(t, nn.Equal(got))

	// overwrite keeps a single, complete file
	other := newTestNetwork(t, []int{1, 4}, 13)
	require.NoError(t, other.Save(path))
	got, err = Load(path)
	require.NoError(t, err)
	assert.True(t, other.Equal(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.nn"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSaveToMissingDirectory(t *testing.T) {
	nn := newTestNetwork(t, []int{1, 1}, 1)
	err := nn.Save(filepath.Join(t.TempDir(), "no", "such", "dir", "net.nn"))
	assert.Error(t, err)
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	nn := newTestNetwork(t, []int{2, 3, 1}, 5)
	data, err := nn.MarshalBinary()
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		for _, n := range []int{0, 3, 8, 12, 20, len(data) / 2, len(data) - 1} {
			_, err := UnmarshalNetwork(data[:n])
			assert.ErrorIs(t, err, ErrCorruptNetwork, "length %d", n)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] ^= 0xff
		_, err := UnmarshalNetwork(bad)
		assert.ErrorIs(t, err, ErrCorruptNetwork)
	})

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint32(bad[4:], 7)
		_, err := UnmarshalNetwork(bad)
		assert.ErrorIs(t, err, ErrCorruptNetwork)
	})

	t.Run("topology disagrees with parameters", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		// the last topology entry is the final 8 bytes
		binary.LittleEndian.PutUint64(bad[len(bad)-8:], 4)
		_, err := UnmarshalNetwork(bad)
		assert.ErrorIs(t, err, ErrCorruptNetwork)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		for _, tail := range [][]byte{{0}, []byte("garbage"), data} {
			bad := append(append([]byte(nil), data...), tail...)
			_, err := UnmarshalNetwork(bad)
			assert.ErrorIs(t, err, ErrCorruptNetwork, "tail of %d bytes", len(tail))
		}
	})

	t.Run("huge length prefix", func(t *testing.T) {
		bad := append([]byte(nil), data[:16]...)
		bad = binary.LittleEndian.AppendUint64(bad, 1<<40)
		_, err := UnmarshalNetwork(bad)
		assert.ErrorIs(t, err, ErrCorruptNetwork)
	})
}
