// Package dash implements the public DASH orchestrator (§4.10): it
// resolves the manifest URL via the operator API, fetches and parses the
// MPD, runs the period combiner, schedules refreshes paced by an EWMA of
// observed refresh durations, and exposes the current Presentation.
package dash

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/streamrelay/internal/clock"
	"github.com/jmylchreest/streamrelay/internal/combiner"
	"github.com/jmylchreest/streamrelay/internal/mpd"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
	"github.com/jmylchreest/streamrelay/internal/timeline"
)

// State is one state of the orchestrator's Idle -> Starting -> Live ->
// Refreshing -> Live (self-loop) -> Stopping -> Stopped state machine.
type State string

const (
	StateIdle       State = "Idle"
	StateStarting   State = "Starting"
	StateLive       State = "Live"
	StateRefreshing State = "Refreshing"
	StateStopping   State = "Stopping"
	StateStopped    State = "Stopped"
)

// MinUpdatePeriod is the floor on the manifest-refresh interval (§4.10).
const MinUpdatePeriod = 3 * time.Second

type streamKey struct {
	periodID         string
	representationID string
}

// Orchestrator drives one DASH ingest end to end.
type Orchestrator struct {
	mu sync.Mutex

	state State

	service, id string
	manifest    *ManifestClient
	rangeClient mpd.RangeFetcher
	clock       clock.Clock
	logger      *slog.Logger

	manifestURI     string
	expireTime      time.Time
	manifestExpired bool
	updatePeriod    time.Duration
	ewmaUpdate      *ewma

	streamMap    map[streamKey]*segment.Index
	presentation *Presentation
}

// NewOrchestrator constructs an Orchestrator for the given service/id pair.
func NewOrchestrator(manifestClient *ManifestClient, rangeClient mpd.RangeFetcher, clk clock.Clock, logger *slog.Logger, service, id string) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Orchestrator{
		state:       StateIdle,
		service:     service,
		id:          id,
		manifest:    manifestClient,
		rangeClient: rangeClient,
		clock:       clk,
		logger:      logger,
		streamMap:   map[streamKey]*segment.Index{},
		ewmaUpdate:  newEWMA(5),
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ManifestExpired reports whether a key re-acquisition is owed before the
// next segment is written (§4.12, "Manifest-expiry coupling").
func (o *Orchestrator) ManifestExpired() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.manifestExpired
}

// ClearManifestExpired clears the manifestExpired flag after the saver has
// performed its key re-acquisition.
func (o *Orchestrator) ClearManifestExpired() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.manifestExpired = false
}

// Presentation returns the current Presentation, or nil before Start.
func (o *Orchestrator) Presentation() *Presentation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.presentation
}

// UpdatePeriod returns the manifest's minimumUpdatePeriod as observed on the
// last refresh, used to derive the HLS #EXT-X-TARGETDURATION (§6).
func (o *Orchestrator) UpdatePeriod() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updatePeriod
}

// Start resolves the manifest URL, fetches and parses the MPD, and
// transitions Idle -> Starting -> Live (§4.10, "start()").
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.state = StateStarting
	o.mu.Unlock()

	mpdURL, expiry, err := o.manifest.ResolveManifestURL(ctx, o.service, o.id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.manifestURI = mpdURL
	o.expireTime = expiry
	o.manifestExpired = true
	o.mu.Unlock()

	if err := o.refreshManifest(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	o.state = StateLive
	o.mu.Unlock()
	return nil
}

// refreshManifest fetches and parses the current manifestURI, runs the
// period combiner, and records the elapsed time into the EWMA (§4.10,
// "requestManifest_()").
func (o *Orchestrator) refreshManifest(ctx context.Context) error {
	start := o.clock.Now()

	o.mu.Lock()
	uri := o.manifestURI
	o.mu.Unlock()

	body, err := o.manifest.FetchMPD(ctx, uri)
	if err != nil {
		return err
	}

	result, err := mpd.Parse(ctx, body, mpd.Options{
		Client:      o.rangeClient,
		BaseURL:     uri,
		ExistingIdx: o.lookupExisting,
		Now:         o.clock.Now(),
	})
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		o.logger.Warn("MPD parser warning", slog.String("warning", w))
	}

	tl := timeline.New(result.AvailabilityStartTime)
	tl.SetStatic(!result.Dynamic)
	tl.SetClockOffset(result.ClockOffset.Milliseconds())
	if result.HasMediaPresentationDuration {
		tl.SetDuration(result.MediaPresentationDuration)
	}
	if result.TimeShiftBufferDepth > 0 {
		tl.SetSegmentAvailabilityDuration(result.TimeShiftBufferDepth)
	}
	tl.SetPresentationDelay(result.SuggestedPresentationDelay)

	availabilityStart := tl.GetSegmentAvailabilityStart(o.clock.Now())
	o.mu.Lock()
	for key, idx := range o.streamMap {
		idx.Evict(availabilityStart)
		o.streamMap[key] = idx
	}
	o.mu.Unlock()

	variants, texts, images := combiner.Combine(result.Periods)

	o.mu.Lock()
	if o.presentation == nil {
		o.presentation = NewPresentation(tl)
	} else {
		o.presentation.Timeline = tl
	}
	o.presentation.Replace(variants, texts, images)
	o.updatePeriod = durationFromSeconds(result.MinimumUpdatePeriod)

	for _, p := range result.Periods {
		for _, s := range p.Streams {
			idx, ierr := s.SegmentIndex()
			if ierr == nil && idx != nil {
				o.streamMap[streamKey{p.ID, s.Origin.RepresentationID}] = idx
			}
		}
	}
	o.mu.Unlock()

	o.ewmaUpdate.Sample(o.clock.Now().Sub(start).Seconds())
	return nil
}

func (o *Orchestrator) lookupExisting(periodID, representationID string) *segment.Index {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streamMap[streamKey{periodID, representationID}]
}

func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// OnUpdate performs one refresh cycle: if the manifest URL has expired, the
// manifest-URL API is re-called and manifestExpired is set; the MPD is then
// re-fetched and reparsed (§4.10, "onUpdate_()"). Returns the delay until
// the next scheduled update.
func (o *Orchestrator) OnUpdate(ctx context.Context) (time.Duration, error) {
	o.mu.Lock()
	o.state = StateRefreshing
	now := o.clock.Now()
	expired := !now.Before(o.expireTime)
	o.mu.Unlock()

	cycleStart := o.clock.Now()

	if expired {
		mpdURL, expiry, err := o.manifest.ResolveManifestURL(ctx, o.service, o.id)
		if err != nil {
			werr := relayerr.Reclassify(err)
			o.mu.Lock()
			o.state = StateLive
			o.mu.Unlock()
			return o.nextDelay(cycleStart), werr
		}
		o.mu.Lock()
		o.manifestURI = mpdURL
		o.expireTime = expiry
		o.manifestExpired = true
		o.mu.Unlock()
	}

	if err := o.refreshManifest(ctx); err != nil {
		werr := relayerr.Reclassify(err)
		o.mu.Lock()
		o.state = StateLive
		o.mu.Unlock()
		return o.nextDelay(cycleStart), werr
	}

	o.mu.Lock()
	o.state = StateLive
	o.mu.Unlock()
	return o.nextDelay(cycleStart), nil
}

// nextDelay computes max(MIN_UPDATE_PERIOD, updatePeriod-elapsed, ewma.estimate).
func (o *Orchestrator) nextDelay(cycleStart time.Time) time.Duration {
	o.mu.Lock()
	updatePeriod := o.updatePeriod
	estimate := time.Duration(o.ewmaUpdate.Estimate() * float64(time.Second))
	o.mu.Unlock()

	elapsed := o.clock.Now().Sub(cycleStart)
	remaining := updatePeriod - elapsed

	delay := MinUpdatePeriod
	if remaining > delay {
		delay = remaining
	}
	if estimate > delay {
		delay = estimate
	}
	return delay
}

// Stop releases every segment index in the stream map, clears it, and
// transitions to Stopped (§4.10, "stop()").
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateStopping
	for _, idx := range o.streamMap {
		idx.Release()
	}
	o.streamMap = map[streamKey]*segment.Index{}
	o.presentation = nil
	o.state = StateStopped
}
