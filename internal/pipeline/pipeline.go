package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/drmpack/internal/bundle"
	"github.com/m1k1o/drmpack/internal/manifest"
	"github.com/m1k1o/drmpack/internal/packager"
	"github.com/m1k1o/drmpack/internal/process"
	"github.com/m1k1o/drmpack/internal/pssh"
	"github.com/m1k1o/drmpack/internal/types"
	"github.com/m1k1o/drmpack/internal/utils"
)

type Stage int

const (
	StageInit Stage = iota
	StageResolvePssh
	StagePackage
	StagePostProcess
	StageWriteBundle
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageResolvePssh:
		return "resolve-pssh"
	case StagePackage:
		return "package"
	case StagePostProcess:
		return "post-process"
	case StageWriteBundle:
		return "write-bundle"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError wraps the error that stopped the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Options struct {
	PsshParallel bool
	PsshStrict   bool
	PsshValidate bool
}

type Result struct {
	OutputDir    string
	ManifestPath string
	Records      []types.PsshRecord // clearkey only
	ContentID    string             // widevine only
}

type Pipeline struct {
	logger    zerolog.Logger
	runner    process.Runner
	processor *manifest.Processor
	writer    *bundle.Writer
	options   Options
}

func New(runner process.Runner, registry *bundle.Registry, options Options) *Pipeline {
	return &Pipeline{
		logger:    log.With().Str("module", "pipeline").Logger(),
		runner:    runner,
		processor: manifest.New(),
		writer:    bundle.New(registry),
		options:   options,
	}
}

func (p *Pipeline) Run(ctx context.Context, req types.PackagingRequest) (*Result, error) {
	logger := p.logger.With().Str("run", uuid.NewString()).Logger()
	started := time.Now()

	stage := func(s Stage) {
		logger.Info().Str("stage", s.String()).Msg("entering stage")
	}
	fail := func(s Stage, err error) (*Result, error) {
		p.logFailure(logger, s, err)
		return nil, &StageError{Stage: s, Err: err}
	}

	stage(StageInit)
	if err := req.Validate(); err != nil {
		return fail(StageInit, err)
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return fail(StageInit, &types.IOError{Op: "mkdir", Path: req.OutputDir, Err: err})
	}

	tracks := req.Tracks()
	streams := make([]types.StreamType, len(tracks))
	for i, track := range tracks {
		streams[i] = track.Stream
	}

	result := &Result{OutputDir: req.OutputDir}
	pkgReq := packager.Request{
		SourcePath:      req.SourcePath,
		OutputDir:       req.OutputDir,
		ManifestType:    req.ManifestType,
		KeySystem:       req.KeySystem,
		SegmentDuration: req.SegmentDuration,
		SegmentTemplate: req.SegmentTemplate,
		Tracks:          tracks,
	}

	switch req.KeySystem {
	case types.Clearkey:
		stage(StageResolvePssh)

		resolver := pssh.New(p.runner, pssh.Config{
			Binary:   req.PsshBoxPath,
			Parallel: p.options.PsshParallel,
			Strict:   p.options.PsshStrict,
			Validate: p.options.PsshValidate,
		})

		combined, records, err := resolver.ResolveAll(ctx, tracks)
		if err != nil {
			return fail(StageResolvePssh, err)
		}

		pkgReq.PsshHex = combined
		result.Records = records
	case types.Widevine:
		result.ContentID = req.ContentID
		if result.ContentID == "" {
			result.ContentID = utils.HexString(types.KeyHexLength)
		}
		pkgReq.ContentID = result.ContentID
	}

	stage(StagePackage)
	manifestPath, err := packager.New(p.runner, req.PackagerPath).Package(ctx, pkgReq)
	if err != nil {
		return fail(StagePackage, err)
	}
	result.ManifestPath = manifestPath

	stage(StagePostProcess)
	if err := p.processor.Apply(req.OutputDir, req.ManifestType, streams); err != nil {
		return fail(StagePostProcess, err)
	}

	stage(StageWriteBundle)
	err = p.writer.Write(req.OutputDir, bundle.Vars{
		ManifestName: req.ManifestType.ManifestName(),
		ManifestType: req.ManifestType,
		KeySystem:    req.KeySystem,
		Keys:         result.Records,
		ContentID:    result.ContentID,
	})
	if err != nil {
		return fail(StageWriteBundle, err)
	}

	logger.Info().
		Str("stage", StageDone.String()).
		Str("manifest", result.ManifestPath).
		Dur("took", time.Since(started)).
		Msg("pipeline finished")

	return result, nil
}

func (p *Pipeline) logFailure(logger zerolog.Logger, stage Stage, err error) {
	event := logger.Error().Err(err).Str("stage", stage.String())

	var procErr *types.ProcessError
	if errors.As(err, &procErr) {
		event = event.
			Str("command", procErr.CommandLine()).
			Int("exit-code", procErr.ExitCode).
			Str("stderr", procErr.Stderr).
			Str("stdout", procErr.Stdout)
	}

	event.Msg("pipeline stopped")
}
