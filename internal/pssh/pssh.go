package pssh

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/m1k1o/drmpack/internal/process"
	"github.com/m1k1o/drmpack/internal/types"
)

type Config struct {
	Binary   string // path to pssh-box.py
	Parallel bool   // run independent lookups concurrently
	Strict   bool   // per-stream lookup failures abort the run
	Validate bool   // combined output must decode as PSSH boxes
}

type Resolver struct {
	logger zerolog.Logger
	runner process.Runner
	config Config
}

func New(runner process.Runner, config Config) *Resolver {
	return &Resolver{
		logger: log.With().Str("module", "pssh").Logger(),
		runner: runner,
		config: config,
	}
}

// Args returns generator arguments requesting hex output for the given key IDs, in order.
func Args(keyIDs []string) []string {
	args := make([]string, 0, 3*len(keyIDs)+1)
	for _, keyID := range keyIDs {
		args = append(args, "--common-system-id", "--key-id", keyID)
	}
	return append(args, "--hex")
}

func (r *Resolver) Resolve(ctx context.Context, keyIDs []string) (string, error) {
	if len(keyIDs) == 0 {
		return "", errors.New("at least one key id is required")
	}

	args := Args(keyIDs)
	result, err := r.runner.Run(ctx, r.config.Binary, args...)
	if err != nil {
		return "", err
	}

	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		return "", &types.ProcessError{
			Binary: r.config.Binary,
			Args:   args,
			Stdout: result.Stdout,
			Stderr: result.Stderr,
			Err:    errors.New("unexpected output format: empty output"),
		}
	}

	if _, err := hex.DecodeString(out); err != nil {
		return "", &types.ProcessError{
			Binary: r.config.Binary,
			Args:   args,
			Stdout: result.Stdout,
			Stderr: result.Stderr,
			Err:    fmt.Errorf("unexpected output format: %w", err),
		}
	}

	return out, nil
}

// ResolveAll looks up one PSSH per track and one combined PSSH covering all
// tracks in order. Only the combined lookup is required for packaging.
func (r *Resolver) ResolveAll(ctx context.Context, tracks []types.Track) (string, []types.PsshRecord, error) {
	records := make([]types.PsshRecord, len(tracks))
	keyIDs := make([]string, len(tracks))
	for i, track := range tracks {
		keyIDs[i] = track.Key.KeyID
		records[i] = types.PsshRecord{
			Type:  track.Stream,
			Key:   track.Key.Key,
			KeyID: track.Key.KeyID,
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if !r.config.Parallel {
		g.SetLimit(1)
	}

	for i := range records {
		i := i
		g.Go(func() error {
			pssh, err := r.Resolve(ctx, []string{records[i].KeyID})
			if err != nil {
				if r.config.Strict {
					return fmt.Errorf("%s pssh: %w", records[i].Type, err)
				}

				r.logStreamFailure(records[i].Type, err)
				return nil
			}

			records[i].Pssh = pssh
			return nil
		})
	}

	var combined string
	g.Go(func() error {
		var err error
		combined, err = r.Resolve(ctx, keyIDs)
		if err != nil {
			return fmt.Errorf("combined pssh: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	info, err := Inspect(combined)
	if err != nil {
		if r.config.Validate {
			return "", nil, &types.ProcessError{
				Binary: r.config.Binary,
				Args:   Args(keyIDs),
				Stdout: combined,
				Err:    fmt.Errorf("unexpected output format: %w", err),
			}
		}
		r.logger.Warn().Err(err).Msg("combined pssh could not be decoded")
	} else {
		r.logger.Debug().
			Int("boxes", len(info)).
			Strs("systems", systemNames(info)).
			Msg("combined pssh resolved")
	}

	return combined, records, nil
}

func (r *Resolver) logStreamFailure(stream types.StreamType, err error) {
	event := r.logger.Warn().Err(err).Str("stream", string(stream))

	var procErr *types.ProcessError
	if errors.As(err, &procErr) {
		event = event.Str("stderr", procErr.Stderr).Str("stdout", procErr.Stdout)
	}

	event.Msg("stream pssh lookup failed, leaving it out of the bundle")
}
