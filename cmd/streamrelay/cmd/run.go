package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/streamrelay/internal/clock"
	"github.com/jmylchreest/streamrelay/internal/combiner"
	"github.com/jmylchreest/streamrelay/internal/config"
	"github.com/jmylchreest/streamrelay/internal/dash"
	"github.com/jmylchreest/streamrelay/internal/drm"
	"github.com/jmylchreest/streamrelay/internal/hls"
	"github.com/jmylchreest/streamrelay/internal/httpclient"
	"github.com/jmylchreest/streamrelay/internal/mpd"
	"github.com/jmylchreest/streamrelay/internal/observability"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/selection"
	"github.com/jmylchreest/streamrelay/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the DASH-to-HLS relay loop",
	Long: `Resolve the live manifest, select a variant, and drive the
live-window segment saver until the process receives a shutdown signal.`,
	RunE: runRelay,
}

func init() {
	runCmd.Flags().String("service", "", "service identifier substituted into the manifest/key API templates")
	runCmd.Flags().String("id", "", "content id substituted into the manifest/key API templates")
	mustBindPFlag("service.service", runCmd.Flags().Lookup("service"))
	mustBindPFlag("service.id", runCmd.Flags().Lookup("id"))

	rootCmd.AddCommand(runCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	baseHTTPCfg := httpclient.DefaultConfig()
	baseHTTPCfg.Timeout = cfg.HTTPClient.Timeout
	baseHTTPCfg.RetryAttempts = cfg.HTTPClient.RetryAttempts
	baseHTTPCfg.RetryDelay = cfg.HTTPClient.RetryDelay
	baseHTTPCfg.RetryMaxDelay = cfg.HTTPClient.RetryMaxDelay
	baseHTTPCfg.CircuitThreshold = cfg.HTTPClient.CircuitThreshold
	baseHTTPCfg.CircuitTimeout = cfg.HTTPClient.CircuitTimeout
	baseHTTPCfg.EnableDecompression = cfg.HTTPClient.EnableDecompression
	baseHTTPCfg.UserAgent = version.UserAgent()
	baseHTTPCfg.Logger = logger

	// The manifest-URL and decryption-key APIs (§6) return small JSON/XML
	// envelopes, so their client caps response size. Segment/range media
	// fetches reuse the same retry/circuit-breaker policy but leave
	// MaxResponseBytes at 0: a live fMP4 segment has no fixed upper bound.
	apiHTTPCfg := baseHTTPCfg
	apiHTTPCfg.MaxResponseBytes = httpclient.DefaultMaxResponseBytes
	apiClient := httpclient.New(apiHTTPCfg)

	segmentClient := httpclient.New(baseHTTPCfg)

	manifestClient := dash.NewManifestClient(apiClient, cfg.Service.MPDAPIFormat)
	keyClient := drm.NewKeyClient(apiClient, cfg.Service.KeyAPIFormat, logger)

	orchestrator := dash.NewOrchestrator(manifestClient, segmentClient, clock.NewSystem(), logger, cfg.Service.Service, cfg.Service.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting DASH ingest",
		slog.String("service", cfg.Service.Service),
		slog.String("id", cfg.Service.ID),
	)
	if err := orchestrator.Start(ctx); err != nil {
		return err
	}
	defer orchestrator.Stop()

	var decrypter *hls.Decrypter
	if cfg.Relay.DecrypterPath != "" {
		decrypter = hls.NewDecrypter(cfg.Relay.DecrypterPath, logger)
	}
	saver := hls.NewSaver(segmentClient, decrypter, clock.NewSystem(), logger, cfg.Relay.OutputDir, cfg.Relay.RepoRoot, cfg.Relay.MaxSegmentNum)
	saver.SetDownloadPool(cfg.Relay.DownloadPoolSize)

	tier := selection.Tier(cfg.Relay.BandwidthTier)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := runCycle(ctx, orchestrator, keyClient, saver, tier, cfg); err != nil {
			logger.Error("relay cycle failed", slog.String("error", err.Error()))
			if relayerr.IsCritical(err) {
				return err
			}
		}

		delay, err := orchestrator.OnUpdate(ctx)
		if err != nil {
			logger.Warn("manifest refresh failed", slog.String("error", err.Error()))
			if relayerr.IsCritical(err) {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runCycle selects a variant from the current presentation, re-acquires the
// content key when the manifest has just been (re)resolved (§4.12,
// "Manifest-expiry coupling"), and drives one saver cycle.
func runCycle(ctx context.Context, orchestrator *dash.Orchestrator, keyClient *drm.KeyClient, saver *hls.Saver, tier selection.Tier, cfg *config.Config) error {
	presentation := orchestrator.Presentation()
	if presentation == nil {
		return relayerr.New(relayerr.CategoryPlayer, relayerr.CodeNoSegmentInfo, "no presentation available yet")
	}

	variant, err := selection.Select(presentation.VariantsSnapshot(), tier, cfg.Relay.Languages)
	if err != nil {
		return err
	}

	var key *hls.Key
	if orchestrator.ManifestExpired() {
		if pssh := findPSSHBoxParam(variant); pssh != "" {
			k, kerr := keyClient.FetchKey(ctx, cfg.Service.Service, cfg.Service.ID, pssh)
			if kerr != nil {
				return kerr
			}
			if k == nil {
				return relayerr.New(relayerr.CategoryPlayer, relayerr.CodeOperationAborted, "decryption-key API returned no key")
			}
			key = &hls.Key{KeyID: k.KeyID, Key: k.Key}
		}
		orchestrator.ClearManifestExpired()
	}

	saver.SetTargetDuration(hls.TargetDurationFromUpdatePeriod(orchestrator.UpdatePeriod().Seconds()))

	availabilityEnd := presentation.Timeline.GetSegmentAvailabilityEnd(time.Now())
	return saver.RunCycle(ctx, variant, key, availabilityEnd)
}

// findPSSHBoxParam returns the Widevine PSSH box parameter for the variant's
// video stream, falling back to its audio stream, or "" if neither carries
// Widevine ContentProtection.
func findPSSHBoxParam(variant *combiner.Variant) string {
	if p := pickWidevinePSSH(variant.Video); p != "" {
		return p
	}
	return pickWidevinePSSH(variant.Audio)
}

func pickWidevinePSSH(stream *mpd.Stream) string {
	if stream == nil {
		return ""
	}
	for _, info := range stream.DrmInfos {
		if info.KeySystem == drm.KeySystemWidevine && info.PSSHBase64 != "" {
			return info.PSSHBase64
		}
	}
	return ""
}
