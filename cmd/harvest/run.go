package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/taurusgroup/dilithium-sca/internal/config"
	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/equation"
	"github.com/taurusgroup/dilithium-sca/pkg/harvest"
	"github.com/taurusgroup/dilithium-sca/pkg/hash"
	"github.com/taurusgroup/dilithium-sca/pkg/pool"
	"github.com/taurusgroup/dilithium-sca/pkg/report"
	"github.com/taurusgroup/dilithium-sca/pkg/tensor"
	"go.uber.org/zap"
)

// keyStream is the index of the seeded stream used for key generation. Workers
// use the streams 0 to workers-1.
const keyStream = -1

func run(cmd *cobra.Command, a arguments) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("run", uuid.NewString()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = execute(ctx, cfg, a, logger); err != nil {
		logger.Error("harvest failed", zap.Error(err))
		return err
	}
	return nil
}

// execute collects the dataset and writes it out.
func execute(ctx context.Context, cfg *config.Config, a arguments, logger *zap.Logger) error {
	seed, err := cfg.SeedBytes()
	if err != nil {
		return err
	}
	sk, err := loadKey(cfg, seed, pool.NewPool(a.workers), logger)
	if err != nil {
		return err
	}

	var signer dilithium.Signer = sk
	if a.masked {
		signer = dilithium.MaskedSigner{Key: sk}
	}
	h, err := harvest.New(harvest.Options{
		Params:        sk.Params(),
		Signer:        signer,
		Seed:          seed,
		ProgressEvery: cfg.ProgressEvery,
		ReserveLimit:  cfg.ReserveLimit,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	ds, err := h.Run(ctx, a.workers, a.target)
	if err != nil {
		return err
	}

	if err = tensor.Export(ds, sk.S1(), a.outDir, a.masked); err != nil {
		return err
	}
	logger.Info("dataset written",
		zap.String("dir", a.outDir),
		zap.Int("records", len(ds.Records)),
		zap.Bool("masked", a.masked))

	if cfg.ReportPath != "" {
		if err = writeReport(cfg.ReportPath, ds.Records, sk.Params().FilterThreshold); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", cfg.ReportPath))
	}
	return nil
}

// loadKey reads the private key from the configured key file. When there is no
// key file, or it does not exist yet, a fresh key is generated, and saved if a
// path was given.
func loadKey(cfg *config.Config, seed []byte, pl *pool.Pool, logger *zap.Logger) (*dilithium.PrivateKey, error) {
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		switch {
		case err == nil:
			sk := new(dilithium.PrivateKey)
			if err = sk.UnmarshalBinary(data); err != nil {
				return nil, fmt.Errorf("key file %s: %w", cfg.KeyFile, err)
			}
			if int(sk.Params().Mode) != cfg.Mode {
				logger.Warn("key file mode overrides configured mode",
					zap.Int("key_mode", int(sk.Params().Mode)),
					zap.Int("mode", cfg.Mode))
			}
			logger.Info("key loaded", zap.String("path", cfg.KeyFile))
			return sk, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("key file: %w", err)
		}
	}

	p, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	var r io.Reader = rand.Reader
	if len(seed) > 0 {
		r = hash.Stream(seed, keyStream)
	}
	_, sk, err := dilithium.GenerateKey(r, p.Mode, pl)
	if err != nil {
		return nil, err
	}
	logger.Info("key generated", zap.Int("mode", int(p.Mode)))

	if cfg.KeyFile != "" {
		data, err := sk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if err = os.WriteFile(cfg.KeyFile, data, 0o600); err != nil {
			return nil, fmt.Errorf("key file: %w", err)
		}
		logger.Info("key saved", zap.String("path", cfg.KeyFile))
	}
	return sk, nil
}

func writeReport(path string, records []equation.Record, threshold int32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err = report.Write(f, records, threshold); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
