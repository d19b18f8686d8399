package build

import (
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

// staging is the sibling directory a build writes into before promotion.
type staging struct {
	outputDir string
	dir       string
	logger    *slog.Logger
}

// beginStaging creates a fresh <output>_stage next to outputDir. A leftover
// staging directory from an interrupted run is discarded.
func beginStaging(outputDir string, logger *slog.Logger) (*staging, error) {
	outputDir = filepath.Clean(outputDir)
	dir := outputDir + "_stage"
	if err := os.RemoveAll(dir); err != nil {
		return nil, ferrors.FileSystemError("failed to clear staging directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ferrors.FileSystemError("failed to create staging directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	logger.Debug("Initialized staging directory", logfields.Path(dir))
	return &staging{outputDir: outputDir, dir: dir, logger: logger}, nil
}

// promote swaps the staging directory into place:
//  1. an existing output moves to <output>.prev
//  2. staging is renamed to the output
//  3. the .prev backup is removed
func (s *staging) promote() error {
	if s.dir == "" {
		return ferrors.InternalError("no staging directory to promote").Build()
	}
	prev := s.outputDir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return ferrors.FileSystemError("failed to remove previous backup").
			WithCause(err).
			WithContext("path", prev).
			Build()
	}
	if _, err := os.Stat(s.outputDir); err == nil {
		if err := os.Rename(s.outputDir, prev); err != nil {
			return ferrors.FileSystemError("failed to back up existing output").
				WithCause(err).
				WithContext("path", s.outputDir).
				Build()
		}
	}
	if err := os.Rename(s.dir, s.outputDir); err != nil {
		// Put the previous output back so the site stays servable.
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, s.outputDir)
		}
		return ferrors.FileSystemError("failed to promote staging directory").
			WithCause(err).
			WithContext("path", s.outputDir).
			Build()
	}
	s.dir = ""
	if err := os.RemoveAll(prev); err != nil {
		s.logger.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	s.logger.Info("Promoted staging directory", logfields.Path(s.outputDir))
	return nil
}

// abort removes the staging directory after a failed or canceled build.
// The output directory is never touched.
func (s *staging) abort() {
	if s == nil || s.dir == "" {
		return
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("Failed to remove staging directory after abort", logfields.Path(dir), logfields.Error(err))
		return
	}
	s.logger.Debug("Removed staging directory after abort", logfields.Path(dir))
}
