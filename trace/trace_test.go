package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

func records(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestTracerRecords(t *testing.T) {
	var buf bytes.Buffer
	dumps := filepath.Join(t.TempDir(), "dumps")
	tr, err := New(Config{Output: &buf, DumpDir: dumps})
	require.NoError(t, err)

	echo := &dimse.EchoRQ{MessageID: 7, AffectedSOPClassUID: types.VerificationSOPClass, DataSetType: types.DataSetTypeNull}
	tr.Command(dimse.Sent, 1, echo, []byte{1, 2, 3})
	tr.Data(dimse.Received, 3, 1024, nil)
	require.NoError(t, tr.Close())

	recs := records(t, buf.Bytes())
	require.Len(t, recs, 2)

	assert.Equal(t, "sent", recs[0]["direction"])
	assert.Equal(t, float64(1), recs[0]["context_id"])
	assert.Equal(t, types.CEchoRQ.String(), recs[0]["command"])
	dump, ok := recs[0]["dump"].(string)
	require.True(t, ok, "command with raw bytes should be dumped")
	raw, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.Equal(t, "received", recs[1]["direction"])
	assert.Equal(t, float64(1024), recs[1]["bytes"])
	_, dumped := recs[1]["dump"]
	assert.False(t, dumped, "streamed data has nothing to dump")

	entries, err := os.ReadDir(dumps)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTracerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dimse.log")
	tr, err := New(Config{File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	tr.Data(dimse.Sent, 5, 10, []byte("0123456789"))
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	recs := records(t, data)
	require.Len(t, recs, 1)
	assert.Equal(t, float64(5), recs[0]["context_id"])
}

func TestTracerNeedsDestination(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
