package core

import (
	"context"
	"time"

	"github.com/datallboy/gopatch/internal/binary"
	"github.com/datallboy/gopatch/internal/domain"
	"github.com/datallboy/gopatch/internal/events"
	"github.com/datallboy/gopatch/internal/infra/config"
	"github.com/datallboy/gopatch/internal/infra/logger"
	"github.com/datallboy/gopatch/internal/patch"
)

// ConfigHandler is the default handler: it builds units from the config
// file and applies a flat capped-attempts retry policy with a fixed wait.
type ConfigHandler struct {
	cfg        *config.Config
	binaryUnit domain.Unit
	patchUnits []domain.Unit
}

func NewConfigHandler(cfg *config.Config, bus *events.Bus, log *logger.Logger) *ConfigHandler {
	h := &ConfigHandler{cfg: cfg}

	if cfg.Binary.Enabled {
		h.binaryUnit = binary.NewUnit(cfg.Binary.PackageURL, cfg.Binary.InstallDir, log)
	}

	for _, t := range cfg.Targets {
		h.patchUnits = append(h.patchUnits, patch.NewUnit(patch.Options{
			Name:            t.Name,
			AssetPath:       t.Asset,
			LocalDir:        t.LocalDir,
			RemoteURL:       t.RemoteURL,
			ManifestName:    t.ManifestName,
			ValidateWorkers: cfg.Validate.Workers,
			DownloadWorkers: cfg.Download.Workers,
		}, bus, log))
	}

	return h
}

func (h *ConfigHandler) Check(ctx context.Context) (bool, bool, error) {
	return h.cfg.Binary.Enabled, len(h.patchUnits) > 0, nil
}

func (h *ConfigHandler) Retry(phase domain.Phase, unit domain.Unit, attempt int) (bool, time.Duration) {
	if attempt >= h.cfg.Retry.MaxAttempts {
		return false, 0
	}
	return true, time.Duration(h.cfg.Retry.WaitSeconds * float64(time.Second))
}

func (h *ConfigHandler) BinaryUnit() domain.Unit { return h.binaryUnit }

func (h *ConfigHandler) PatchUnits() []domain.Unit { return h.patchUnits }
