package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/billbox/internal/app"
	"github.com/cleared-dev/billbox/internal/config"
	"github.com/cleared-dev/billbox/internal/logger"
	"github.com/cleared-dev/billbox/internal/ocr"
)

// ocrMode says whether a command needs the Vision client. ocrRequired fails
// when no client can be created; ocrIfConfigured creates one only when
// credentials are set.
type ocrMode int

const (
	ocrOff ocrMode = iota
	ocrRequired
	ocrIfConfigured
)

// project is an opened billbox project directory.
type project struct {
	*app.App
	user   string
	log    zerolog.Logger
	vision *ocr.VisionSource
}

func openProject(ctx context.Context, opts *rootOptions, mode ocrMode) (*project, error) {
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no %s in %s: run `billbox init` first", config.FileName, dir)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if opts.user != "" {
		cfg.User.ID = opts.user
	}
	if err := logger.Setup(cfg.Log); err != nil {
		return nil, err
	}

	p := &project{user: cfg.User.ID, log: logger.WithComponent("billbox")}
	appOpts := []app.Option{app.WithLogger(p.log)}

	creds := cfg.Credentials()
	if mode == ocrRequired || (mode == ocrIfConfigured && (creds.JSON != "" || creds.File != "")) {
		p.vision, err = ocr.NewVisionSource(ctx, creds)
		if err != nil {
			_ = logger.Close()
			return nil, err
		}
		appOpts = append(appOpts, app.WithTextSource(ocr.NewPreprocessed(p.vision)))
	}

	p.App, err = app.Open(cfg, dir, appOpts...)
	if err != nil {
		p.closeVision()
		_ = logger.Close()
		return nil, err
	}
	return p, nil
}

func (p *project) Close() error {
	p.closeVision()
	err := p.App.Close()
	if lerr := logger.Close(); err == nil {
		err = lerr
	}
	return err
}

func (p *project) closeVision() {
	if p.vision == nil {
		return
	}
	if err := p.vision.Close(); err != nil {
		p.log.Warn().Err(err).Msg("closing Vision client")
	}
}
