// Package hls implements the live-window segment saver (§4.11): it selects
// the live edge of a Variant's concatenated segment index, fetches and
// decrypts each new segment, rotates a rolling HLS window, and writes the
// master/media playlists with bit-exact text.
package hls

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/streamrelay/internal/clock"
	"github.com/jmylchreest/streamrelay/internal/combiner"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

// tmpSuffix returns a unique suffix for an atomic-rewrite temp file, so two
// saver instances sharing an output directory never clobber each other's
// in-flight write.
func tmpSuffix() string {
	return ".tmp." + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Fetcher is the narrow HTTP surface the saver needs to download segment
// bytes.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Key is the currently active Widevine content key, supplied by the caller
// whenever the orchestrator's manifestExpired flag is set (§4.12).
type Key struct {
	KeyID []byte
	Key   []byte
}

// trackState holds the per-track (audio/video) rolling-window bookkeeping.
type trackState struct {
	name           string
	playlist       *MediaPlaylist
	lastSegmentURI string
	initDownloaded bool
}

// Saver drives one Variant's segment-saver cycle.
type Saver struct {
	fetcher       Fetcher
	decrypter     *Decrypter
	clock         clock.Clock
	logger        *slog.Logger
	outputDir     string
	repoRoot      string
	maxSegmentNum int

	audio, video *trackState
	masterWritten bool

	// targetDuration overrides the media playlist's #EXT-X-TARGETDURATION
	// (§6); set from the orchestrator's minimumUpdatePeriod via
	// SetTargetDuration. Falls back to the segment duration when unset.
	targetDuration int

	// downloadPool bounds how many segment downloads run concurrently
	// within one track's prefetch (§5, "bounded pool, default 1 per
	// track"). The pipeline stage after download (concat -> decrypt ->
	// playlist write) always runs strictly sequential per slot.
	downloadPool int
}

// SetDownloadPool sets the per-track concurrent-download bound (§5).
// n < 1 is treated as 1 (sequential, the reference default).
func (s *Saver) SetDownloadPool(n int) {
	s.downloadPool = n
}

// SetTargetDuration records the manifest's minimumUpdatePeriod-derived
// #EXT-X-TARGETDURATION value (§6), applied to media playlists created from
// this point on.
func (s *Saver) SetTargetDuration(seconds int) {
	s.targetDuration = seconds
}

// NewSaver constructs a Saver writing playlists under outputDir and using
// repoRoot/download, repoRoot/output as transient working directories.
func NewSaver(fetcher Fetcher, decrypter *Decrypter, clk clock.Clock, logger *slog.Logger, outputDir, repoRoot string, maxSegmentNum int) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Saver{
		fetcher:       fetcher,
		decrypter:     decrypter,
		clock:         clk,
		logger:        logger,
		outputDir:     outputDir,
		repoRoot:      repoRoot,
		maxSegmentNum: maxSegmentNum,
		downloadPool:  1,
		audio:         &trackState{name: "audio"},
		video:         &trackState{name: "video"},
	}
}

// RunCycle executes one segment-saver cycle against variant: fetching and
// decrypting every newly-available segment on the live edge, rotating the
// rolling window, and pacing to real time once the window is full (§4.11).
func (s *Saver) RunCycle(ctx context.Context, variant *combiner.Variant, key *Key, availabilityEnd float64) error {
	var audioIdx, videoIdx *segment.Index
	if variant.Audio != nil {
		idx, err := variant.Audio.SegmentIndex()
		if err != nil {
			return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeNoSegmentInfo, "resolving audio segment index", err)
		}
		audioIdx = idx
	}
	if variant.Video != nil {
		idx, err := variant.Video.SegmentIndex()
		if err != nil {
			return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeNoSegmentInfo, "resolving video segment index", err)
		}
		videoIdx = idx
	}

	if !s.masterWritten {
		if err := s.writeMasterPlaylist(variant); err != nil {
			return err
		}
		s.masterWritten = true
	}

	audioNew := liveEdgeReferences(audioIdx, s.audio, s.maxSegmentNum, availabilityEnd)
	videoNew := liveEdgeReferences(videoIdx, s.video, s.maxSegmentNum, availabilityEnd)

	pg, pgctx := errgroup.WithContext(ctx)
	pg.Go(func() error { return s.prefetchSegments(pgctx, s.audio, audioNew) })
	pg.Go(func() error { return s.prefetchSegments(pgctx, s.video, videoNew) })
	if err := pg.Wait(); err != nil {
		return err
	}

	slots := len(audioNew)
	if len(videoNew) > slots {
		slots = len(videoNew)
	}

	for i := 0; i < slots; i++ {
		if i < len(audioNew) {
			if err := s.processSegment(ctx, s.audio, key, audioNew[i]); err != nil {
				return err
			}
		}
		if i < len(videoNew) {
			if err := s.processSegment(ctx, s.video, key, videoNew[i]); err != nil {
				return err
			}
		}

		elapsed := 0.0
		if i < len(videoNew) {
			elapsed = videoNew[i].EndTime - videoNew[i].StartTime
		} else if i < len(audioNew) {
			elapsed = audioNew[i].EndTime - audioNew[i].StartTime
		}
		if (s.audio.playlist != nil && s.audio.playlist.BufferFull()) || (s.video.playlist != nil && s.video.playlist.BufferFull()) {
			s.clock.Sleep(time.Duration(elapsed * float64(time.Second)))
		}
	}

	s.cleanup()
	return nil
}

// liveEdgeReferences applies the §4.11 live-edge selection rule and returns
// the references not yet emitted for track.
func liveEdgeReferences(idx *segment.Index, track *trackState, maxSegmentNum int, availabilityEnd float64) []*segment.Reference {
	if idx == nil {
		return nil
	}
	refs := idx.All()
	total := len(refs)

	start := 0
	if track.lastSegmentURI != "" {
		found := -1
		for i, r := range refs {
			if matchesURI(r, track.lastSegmentURI) {
				found = i
				break
			}
		}
		if found >= 0 {
			start = found + 1
		}
	} else {
		for k := 0; k < total; k++ {
			if k+maxSegmentNum < total && refs[k+maxSegmentNum].EndTime > availabilityEnd {
				start = k
				break
			}
			if k+maxSegmentNum >= total {
				start = k
				break
			}
		}
	}

	if start >= total {
		return nil
	}
	out := refs[start:]
	if len(out) > 0 {
		last := out[len(out)-1]
		if uris := last.GetURIs(); len(uris) > 0 {
			track.lastSegmentURI = uris[0]
		}
	}
	return out
}

// prefetchSegments downloads every newly-available reference for track to
// its download/{track}/{segmentName} path, bounded by downloadPool
// concurrent fetches (§5, "segment downloads may proceed in parallel within
// a bounded pool"). The subsequent per-slot pipeline (concat -> decrypt ->
// playlist write) still runs strictly sequential in processSegment; it
// finds the bytes already on disk here and skips re-fetching them.
func (s *Saver) prefetchSegments(ctx context.Context, track *trackState, refs []*segment.Reference) error {
	if len(refs) == 0 {
		return nil
	}

	pool := s.downloadPool
	if pool < 1 {
		pool = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pool)

	needsInit := !track.initDownloaded && refs[0].InitSegment != nil && len(refs[0].InitSegment.URIs) > 0
	if needsInit {
		initURI := refs[0].InitSegment.URIs[0]
		initPath := filepath.Join(s.repoRoot, "download", track.name, "init.mp4")
		g.Go(func() error { return s.fetchToFileIfMissing(gctx, initURI, initPath) })
	}

	for _, ref := range refs {
		uris := ref.GetURIs()
		if len(uris) == 0 {
			continue
		}
		uri := uris[0]
		dst := filepath.Join(s.repoRoot, "download", track.name, segmentName(uri))
		g.Go(func() error { return s.fetchToFileIfMissing(gctx, uri, dst) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if needsInit {
		track.initDownloaded = true
	}
	return nil
}

func matchesURI(r *segment.Reference, uri string) bool {
	for _, u := range r.GetURIs() {
		if u == uri {
			return true
		}
	}
	return false
}

// processSegment runs the fetch -> concat -> decrypt -> playlist pipeline
// for a single reference (§4.11, "Per-segment pipeline").
func (s *Saver) processSegment(ctx context.Context, track *trackState, key *Key, ref *segment.Reference) error {
	uris := ref.GetURIs()
	if len(uris) == 0 {
		return relayerr.New(relayerr.CategorySegment, relayerr.CodeNoSegmentInfo, "segment reference has no URIs")
	}
	uri := uris[0]

	if !track.initDownloaded && ref.InitSegment != nil && len(ref.InitSegment.URIs) > 0 {
		initPath := filepath.Join(s.repoRoot, "download", track.name, "init.mp4")
		if err := s.fetchToFileIfMissing(ctx, ref.InitSegment.URIs[0], initPath); err != nil {
			return err
		}
		track.initDownloaded = true
	}

	name := segmentName(uri)
	downloadPath := filepath.Join(s.repoRoot, "download", track.name, name)
	if err := s.fetchToFileIfMissing(ctx, uri, downloadPath); err != nil {
		return err
	}

	outputPath := filepath.Join(s.repoRoot, "output", track.name, name)
	initPath := filepath.Join(s.repoRoot, "download", track.name, "init.mp4")
	if err := concatFiles(initPath, downloadPath, outputPath); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "concatenating init and media segment", err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	playlistDir := filepath.Join(s.outputDir, track.name)
	if err := os.MkdirAll(playlistDir, 0o755); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "creating playlist directory", err)
	}
	finalName := stem + ".mp4"
	finalPath := filepath.Join(playlistDir, finalName)

	if s.decrypter != nil {
		var keyID, keyBytes []byte
		if key != nil {
			keyID, keyBytes = key.KeyID, key.Key
		}
		if err := s.decrypter.Invoke(ctx, keyID, keyBytes, outputPath, finalPath, s.repoRoot, track.name); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(outputPath)
		if err == nil {
			err = os.WriteFile(finalPath, data, 0o644)
		}
		if err != nil {
			return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "copying segment into playlist directory", err)
		}
	}

	if track.playlist == nil {
		td := s.targetDuration
		if td <= 0 {
			td = int(ref.EndTime - ref.StartTime)
		}
		track.playlist = NewMediaPlaylist(td, s.maxSegmentNum)
	}
	duration := ref.EndTime - ref.StartTime
	evicted := track.playlist.Append(finalName, duration)
	if evicted != "" {
		_ = os.Remove(filepath.Join(playlistDir, evicted))
	}

	return s.writeMediaPlaylistAtomic(track)
}

func (s *Saver) writeMediaPlaylistAtomic(track *trackState) error {
	dir := filepath.Join(s.outputDir, track.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "creating media playlist directory", err)
	}
	final := filepath.Join(dir, track.name+"Variant.m3u8")
	tmp := final + tmpSuffix()
	if err := os.WriteFile(tmp, []byte(track.playlist.Render()), 0o644); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "writing media playlist", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "renaming media playlist into place", err)
	}
	return nil
}

func (s *Saver) writeMasterPlaylist(variant *combiner.Variant) error {
	params := MasterPlaylistParams{}
	if variant.Audio != nil {
		params.Language = variant.Audio.Language
	}
	if variant.Video != nil {
		params.Width = variant.Video.Width
		params.Height = variant.Video.Height
		params.Codecs = variant.Video.Codecs
		params.FrameRate = variant.Video.FrameRate
	}
	params.Bandwidth = variant.Bandwidth

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "creating output directory", err)
	}
	masterPath := filepath.Join(s.outputDir, "master.m3u8")
	tmp := masterPath + tmpSuffix()
	if err := os.WriteFile(tmp, []byte(RenderMasterPlaylist(params)), 0o644); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "writing master playlist", err)
	}
	if err := os.Rename(tmp, masterPath); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "renaming master playlist into place", err)
	}
	return nil
}

// fetchToFileIfMissing calls fetchToFile unless dstPath already exists,
// so a slot's pipeline step reuses bytes this cycle's prefetch already
// downloaded instead of fetching them twice.
func (s *Saver) fetchToFileIfMissing(ctx context.Context, uri, dstPath string) error {
	if _, err := os.Stat(dstPath); err == nil {
		return nil
	}
	return s.fetchToFile(ctx, uri, dstPath)
}

// fetchToFile downloads uri into dstPath, creating parent directories as
// needed (§4.11, "Fetch segment bytes to download/{track}/{segmentName}").
func (s *Saver) fetchToFile(ctx context.Context, uri, dstPath string) error {
	resp, err := s.fetcher.Get(ctx, uri)
	if err != nil {
		return relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "fetching segment", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "creating download directory", err)
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "creating segment file", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed, "writing segment file", err)
	}
	return nil
}

// concatFiles writes dstPath as the byte concatenation of initPath then
// mediaPath (§4.11, "concatenate init.mp4 + {segmentName}").
func concatFiles(initPath, mediaPath, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if data, err := os.ReadFile(initPath); err == nil {
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	media, err := os.Open(mediaPath)
	if err != nil {
		return err
	}
	defer func() { _ = media.Close() }()
	_, err = io.Copy(out, media)
	return err
}

// segmentName converts a segment URI's basename into the zero-padded
// 12-digit decimal stringification of its hex-parsed name, falling back to
// the original basename when it is not a hex number (§4.11, "Segment names").
func segmentName(uri string) string {
	base := path.Base(uri)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	n, err := strconv.ParseUint(stem, 16, 64)
	if err != nil {
		return base
	}
	return fmt.Sprintf("%012d%s", n, ext)
}

// BufferFull reports whether either track's rolling window has filled
// (§4.11, "Pacing").
func (s *Saver) BufferFull() bool {
	return (s.audio.playlist != nil && s.audio.playlist.BufferFull()) || (s.video.playlist != nil && s.video.playlist.BufferFull())
}

// cleanup purges the transient download/ and output/ working directories at
// the end of a cycle (§4.11, "Cleanup").
func (s *Saver) cleanup() {
	for _, dir := range []string{"download", "output"} {
		if err := os.RemoveAll(filepath.Join(s.repoRoot, dir)); err != nil {
			s.logger.Warn("cleanup failed", slog.String("dir", dir), slog.Any("error", err))
		}
	}
	s.audio.initDownloaded = false
	s.video.initDownloaded = false
}
