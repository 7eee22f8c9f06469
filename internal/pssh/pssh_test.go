package pssh

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/drmpack/internal/process"
	"github.com/m1k1o/drmpack/internal/types"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	run   func(args []string) (*process.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, binary string, args ...string) (*process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	return f.run(args)
}

func keyIDsOf(args []string) []string {
	ids := []string{}
	for i, arg := range args {
		if arg == "--key-id" {
			ids = append(ids, args[i+1])
		}
	}
	return ids
}

var (
	audioTrack = types.Track{Stream: types.Audio, Key: types.KeySpec{KeyID: strings.Repeat("a", 32), Key: strings.Repeat("1", 32)}}
	videoTrack = types.Track{Stream: types.Video, Key: types.KeySpec{KeyID: strings.Repeat("b", 32), Key: strings.Repeat("2", 32)}}
)

// psshBox encodes a version 1 PSSH box by hand.
func psshBox(systemID string, kids ...string) []byte {
	sys, _ := hex.DecodeString(systemID)

	body := []byte{1, 0, 0, 0}
	body = append(body, sys...)
	body = binary.BigEndian.AppendUint32(body, uint32(len(kids)))
	for _, kid := range kids {
		k, _ := hex.DecodeString(kid)
		body = append(body, k...)
	}
	body = binary.BigEndian.AppendUint32(body, 0)

	box := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	box = append(box, 'p', 's', 's', 'h')
	return append(box, body...)
}

func TestArgs(t *testing.T) {
	args := Args([]string{"aa", "bb"})
	assert.Equal(t, []string{
		"--common-system-id", "--key-id", "aa",
		"--common-system-id", "--key-id", "bb",
		"--hex",
	}, args)
}

func TestResolveTrimsOutput(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
		return &process.Result{Stdout: "  DEADBEEF\n"}, nil
	}}

	out, err := New(runner, Config{Binary: "pssh-box.py"}).Resolve(context.Background(), []string{"aa"})
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF", out)
}

func TestResolveAllKeepsGeneratorOutput(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
		return &process.Result{Stdout: "DEADBEEF\n"}, nil
	}}

	combined, records, err := New(runner, Config{Binary: "pssh-box.py", Parallel: true}).
		ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF", combined)
	assert.Equal(t, "DEADBEEF", records[0].Pssh)
	assert.Equal(t, "DEADBEEF", records[1].Pssh)
}

func TestResolveRejectsUnexpectedOutput(t *testing.T) {
	for _, stdout := range []string{"", "   \n", "not hex at all"} {
		runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
			return &process.Result{Stdout: stdout}, nil
		}}

		_, err := New(runner, Config{Binary: "pssh-box.py"}).Resolve(context.Background(), []string{"aa"})

		var procErr *types.ProcessError
		require.True(t, errors.As(err, &procErr), "stdout %q", stdout)
		assert.Contains(t, procErr.Error(), "unexpected output format")
	}
}

func TestResolveRequiresKeyIDs(t *testing.T) {
	_, err := New(&fakeRunner{}, Config{}).Resolve(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveAll(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
			return &process.Result{Stdout: strings.Join(keyIDsOf(args), "") + "\n"}, nil
		}}

		resolver := New(runner, Config{Binary: "pssh-box.py", Parallel: parallel})
		combined, records, err := resolver.ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})
		require.NoError(t, err)

		// combined lookup lists key ids in audio then video order
		assert.Equal(t, audioTrack.Key.KeyID+videoTrack.Key.KeyID, combined)
		assert.Len(t, runner.calls, 3)

		require.Len(t, records, 2)
		assert.Equal(t, types.PsshRecord{Type: types.Audio, Key: audioTrack.Key.Key, KeyID: audioTrack.Key.KeyID, Pssh: audioTrack.Key.KeyID}, records[0])
		assert.Equal(t, types.PsshRecord{Type: types.Video, Key: videoTrack.Key.Key, KeyID: videoTrack.Key.KeyID, Pssh: videoTrack.Key.KeyID}, records[1])
	}
}

func TestResolveAllStreamFailureTolerated(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
		ids := keyIDsOf(args)
		if len(ids) == 1 && ids[0] == videoTrack.Key.KeyID {
			return &process.Result{Stderr: "boom"}, &types.ProcessError{Binary: "pssh-box.py", ExitCode: 1, Stderr: "boom", Err: errors.New("exit status 1")}
		}
		return &process.Result{Stdout: "deadbeef"}, nil
	}}

	combined, records, err := New(runner, Config{Binary: "pssh-box.py", Parallel: true}).
		ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", combined)
	assert.Equal(t, "deadbeef", records[0].Pssh)
	assert.Equal(t, "", records[1].Pssh)
}

func TestResolveAllStreamFailureStrict(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
		if len(keyIDsOf(args)) == 1 {
			return nil, &types.ProcessError{Binary: "pssh-box.py", ExitCode: 1, Err: errors.New("exit status 1")}
		}
		return &process.Result{Stdout: "deadbeef"}, nil
	}}

	_, _, err := New(runner, Config{Binary: "pssh-box.py", Strict: true}).
		ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})

	var procErr *types.ProcessError
	assert.True(t, errors.As(err, &procErr))
}

func TestResolveAllCombinedFailure(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
		if len(keyIDsOf(args)) == 2 {
			return nil, &types.ProcessError{Binary: "pssh-box.py", ExitCode: 2, Err: errors.New("exit status 2")}
		}
		return &process.Result{Stdout: "deadbeef"}, nil
	}}

	_, _, err := New(runner, Config{Binary: "pssh-box.py", Parallel: true}).
		ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combined pssh")
}

func TestResolveAllValidate(t *testing.T) {
	box := hex.EncodeToString(psshBox("1077efecc0b24d02ace33c1e52e2fb4b", audioTrack.Key.KeyID, videoTrack.Key.KeyID))

	runner := &fakeRunner{run: func(args []string) (*process.Result, error) {
		return &process.Result{Stdout: box}, nil
	}}
	combined, _, err := New(runner, Config{Binary: "pssh-box.py", Validate: true}).
		ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})
	require.NoError(t, err)
	assert.Equal(t, box, combined)

	runner = &fakeRunner{run: func(args []string) (*process.Result, error) {
		return &process.Result{Stdout: "deadbeef"}, nil
	}}
	_, _, err = New(runner, Config{Binary: "pssh-box.py", Validate: true}).
		ResolveAll(context.Background(), []types.Track{audioTrack, videoTrack})

	var procErr *types.ProcessError
	assert.True(t, errors.As(err, &procErr))
}

func TestInspect(t *testing.T) {
	data := append(
		psshBox("1077efecc0b24d02ace33c1e52e2fb4b", strings.Repeat("a", 32), strings.Repeat("b", 32)),
		psshBox("edef8ba979d64acea3c827dcd51d21ed", strings.Repeat("c", 32))...,
	)

	boxes, err := Inspect(hex.EncodeToString(data))
	require.NoError(t, err)
	require.Len(t, boxes, 2)

	assert.Equal(t, "common", boxes[0].SystemName())
	assert.Equal(t, []string{strings.Repeat("a", 32), strings.Repeat("b", 32)}, boxes[0].KeyIDs)
	assert.Equal(t, "widevine", boxes[1].SystemName())
	assert.Equal(t, []string{strings.Repeat("c", 32)}, boxes[1].KeyIDs)
	assert.Equal(t, []string{"common", "widevine"}, systemNames(boxes))
}

func TestInspectInvalid(t *testing.T) {
	_, err := Inspect("zz")
	assert.Error(t, err)

	_, err = Inspect("")
	assert.Error(t, err)

	_, err = Inspect("deadbeef")
	assert.Error(t, err)
}
