package docker

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/replaybench/internal/simulator"
)

func TestSimulatorRunOpts(t *testing.T) {
	input := t.TempDir()
	work := t.TempDir()
	r := &SimulatorRunner{Image: "hmd:latest", InputDir: input, MountExecutable: true, Env: []string{"A=1"}}
	inv := &simulator.Invocation{
		Executable: "/opt/bin/model_run",
		Args:       []string{"-map", filepath.Join(input, "map.txt"), "-seed", "5"},
		Dir:        work,
	}

	opts, err := r.runOpts(inv)
	require.NoError(t, err)
	assert.Equal(t, "hmd:latest", opts.Image)
	assert.Equal(t, work, opts.WorkDir)
	assert.Equal(t, []string{"A=1"}, opts.Env)
	require.Len(t, opts.Mounts, 3)
	assert.True(t, opts.Mounts[0].ReadOnly, "input mount is read-only")
	assert.False(t, opts.Mounts[1].ReadOnly, "work mount is writable")
	assert.Equal(t, []string{"/opt/bin/model_run", "-map", filepath.Join(input, "map.txt"), "-seed", "5"}, opts.Command)
}

func TestAbsInputArgs(t *testing.T) {
	args := []string{"-map", filepath.Join("in", "map.txt"), "-sample", "/abs/sample.txt", "-seed", "3"}
	got := absInputArgs(args, "in", "/data/in")
	assert.Equal(t, filepath.Join("/data/in", "map.txt"), got[1])
	assert.Equal(t, "/abs/sample.txt", got[3], "absolute paths are kept")
	assert.Equal(t, "3", got[5], "unrelated args are kept")
	assert.Equal(t, filepath.Join("in", "map.txt"), args[1], "input slice is not modified")
}

// frame encodes one chunk of a multiplexed container log stream.
func frame(stream byte, payload string) []byte {
	hdr := make([]byte, 8)
	hdr[0] = stream
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(payload)))
	return append(hdr, payload...)
}

func TestDemuxLogs(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(frame(2, "warn\n"))
	stream.Write(frame(1, "1 2 3 4 5\n"))
	stream.Write(frame(2, "done\n"))

	stdout, stderr, err := demuxLogs(&stream)
	require.NoError(t, err)
	assert.Equal(t, "1 2 3 4 5\n", string(stdout))
	assert.Equal(t, "warn\ndone\n", string(stderr))

	res, err := simulator.ParseOutput(string(stdout))
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Score)
}
