package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/config"
)

// ErrStreamNotFound is returned for names absent from the registry.
var ErrStreamNotFound = errors.New("stream not found")

// FallbackStream names the synthetic stream installed when discovery fails.
const FallbackStream = "main"

// Protocol is a stream transport.
type Protocol string

const (
	ProtocolRTSP   Protocol = "rtsp"
	ProtocolUDP    Protocol = "udp"
	ProtocolWebRTC Protocol = "webrtc"
	ProtocolMJPEG  Protocol = "mjpeg"
)

// ParseProtocol validates a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(s); p {
	case ProtocolRTSP, ProtocolUDP, ProtocolWebRTC, ProtocolMJPEG:
		return p, nil
	}
	return "", fmt.Errorf("unknown stream protocol %q", s)
}

// Stream defaults.
const (
	DefaultWidth   = 1920
	DefaultHeight  = 1080
	DefaultFPS     = 30
	DefaultBitrate = 5000000
)

// Stream is one registered video stream.
type Stream struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Protocol  Protocol  `json:"protocol"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FPS       int       `json:"fps"`
	Bitrate   int       `json:"bitrate"`
	Active    bool      `json:"active"`
	Recording bool      `json:"recording"`
	Filename  string    `json:"filename,omitempty"`
	Since     time.Time `json:"recordingSince,omitzero"`
}

// Descriptor is the client-facing view of a stream.
type Descriptor struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Source     string   `json:"source"`
	Protocol   Protocol `json:"protocol"`
	Resolution string   `json:"resolution"`
	FPS        int      `json:"fps"`
	Bitrate    string   `json:"bitrate"`
	Active     bool     `json:"active"`
	Recording  bool     `json:"recording"`
	WebRTCURL  string   `json:"webrtcUrl"`
	MJPEGURL   string   `json:"mjpegUrl"`
	Snapshot   string   `json:"snapshotUrl"`
}

// StreamSource is the companion surface discovery needs.
type StreamSource interface {
	Cameras(ctx context.Context) ([]companion.Document, error)
	VideoStreams(ctx context.Context) ([]companion.Document, error)
}

// Registry holds the discovered streams.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	companionHost string
	companionPort int
	videoPort     int
	logger        *slog.Logger
}

// NewRegistry creates an empty registry for the companion at host:port.
func NewRegistry(host string, port, videoPort int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		streams:       make(map[string]*Stream),
		companionHost: host,
		companionPort: port,
		videoPort:     videoPort,
		logger:        logger.With("component", "video"),
	}
}

// NewRegistryFromConfig creates a registry from the companion settings.
func NewRegistryFromConfig(cfg *config.Config, logger *slog.Logger) *Registry {
	return NewRegistry(cfg.CompanionHost, cfg.CompanionPort, cfg.VideoPort, logger)
}

// Discover replaces the registry with the streams reported by source.
func (r *Registry) Discover(ctx context.Context, source StreamSource) error {
	streams, err := r.discover(ctx, source)
	if err != nil {
		r.logger.Warn("stream discovery failed, using fallback", "error", err)
		streams = map[string]*Stream{FallbackStream: r.fallback()}
	}

	r.mu.Lock()
	r.streams = streams
	r.mu.Unlock()

	r.logger.Info("streams discovered", "count", len(streams))
	return err
}

func (r *Registry) discover(ctx context.Context, source StreamSource) (map[string]*Stream, error) {
	if source == nil {
		return nil, errors.New("no stream source")
	}
	cameras, err := source.Cameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("cameras: %w", err)
	}
	entries, err := source.VideoStreams(ctx)
	if err != nil {
		return nil, fmt.Errorf("video streams: %w", err)
	}
	r.logger.Debug("camera manager answered", "cameras", len(cameras), "streams", len(entries))

	streams := make(map[string]*Stream, len(entries))
	for i, entry := range entries {
		s, err := streamFromDocument(entry, i)
		if err != nil {
			r.logger.Warn("skipping stream entry", "index", i, "error", err)
			continue
		}
		streams[s.Name] = s
	}
	if len(streams) == 0 {
		return nil, errors.New("camera manager reported no usable streams")
	}
	return streams, nil
}

func streamFromDocument(doc companion.Document, index int) (*Stream, error) {
	protocol := ProtocolUDP
	if raw, ok := doc["protocol"].(string); ok {
		p, err := ParseProtocol(raw)
		if err != nil {
			return nil, err
		}
		protocol = p
	}

	name, _ := doc["name"].(string)
	if name == "" {
		name = "stream_" + strconv.Itoa(index)
	}
	source, _ := doc["source"].(string)
	active := true
	if v, ok := doc["active"].(bool); ok {
		active = v
	}

	return &Stream{
		Name:     name,
		Source:   source,
		Protocol: protocol,
		Width:    intField(doc, "width", DefaultWidth),
		Height:   intField(doc, "height", DefaultHeight),
		FPS:      intField(doc, "fps", DefaultFPS),
		Bitrate:  intField(doc, "bitrate", DefaultBitrate),
		Active:   active,
	}, nil
}

func intField(doc companion.Document, key string, def int) int {
	if v, ok := doc.Float(key); ok {
		return int(v)
	}
	return def
}

func (r *Registry) fallback() *Stream {
	return &Stream{
		Name:     FallbackStream,
		Source:   fmt.Sprintf("udp://%s:%d", r.companionHost, r.videoPort),
		Protocol: ProtocolUDP,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
		Bitrate:  DefaultBitrate,
	}
}

// Get returns a copy of one stream.
func (r *Registry) Get(name string) (Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[name]
	if !ok {
		return Stream{}, fmt.Errorf("%w: %s", ErrStreamNotFound, name)
	}
	return *s, nil
}

// List returns copies of every stream sorted by name.
func (r *Registry) List() []Stream {
	r.mu.RLock()
	out := make([]Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) managerURL(kind, id string) string {
	return fmt.Sprintf("http://%s:%d/mavlink-camera-manager/%s/%s", r.companionHost, r.companionPort, kind, id)
}

// WebRTCURL returns the signalling endpoint for a stream.
func (r *Registry) WebRTCURL(id string) string { return r.managerURL("webrtc", id) }

// MJPEGURL returns the MJPEG endpoint for a stream.
func (r *Registry) MJPEGURL(id string) string { return r.managerURL("mjpeg", id) }

// SnapshotURL returns the single-frame endpoint for a stream.
func (r *Registry) SnapshotURL(id string) string { return r.managerURL("snapshot", id) }

// Descriptors returns the client-facing list with playback URLs.
func (r *Registry) Descriptors() []Descriptor {
	streams := r.List()
	out := make([]Descriptor, 0, len(streams))
	for _, s := range streams {
		out = append(out, Descriptor{
			ID:         s.Name,
			Name:       s.Name,
			Source:     s.Source,
			Protocol:   s.Protocol,
			Resolution: fmt.Sprintf("%dx%d", s.Width, s.Height),
			FPS:        s.FPS,
			Bitrate:    BitrateLabel(s.Bitrate),
			Active:     s.Active,
			Recording:  s.Recording,
			WebRTCURL:  r.WebRTCURL(s.Name),
			MJPEGURL:   r.MJPEGURL(s.Name),
			Snapshot:   r.SnapshotURL(s.Name),
		})
	}
	return out
}

// BitrateLabel renders bits per second in SI units, e.g. "5 Mbit/s".
func BitrateLabel(bps int) string {
	value, prefix := humanize.ComputeSI(float64(bps))
	return humanize.FtoaWithDigits(value, 2) + " " + prefix + "bit/s"
}

// StartRecording marks a stream as recording to filename.
func (r *Registry) StartRecording(name, filename string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, name)
	}
	if filename == "" {
		filename = fmt.Sprintf("%s_%s.mp4", name, now.UTC().Format("20060102_150405"))
	}
	s.Recording = true
	s.Filename = filename
	s.Since = now
	r.logger.Info("recording started", "stream", name, "file", filename)
	return nil
}

// StopRecording clears the recording flag and returns the finished filename.
func (r *Registry) StopRecording(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrStreamNotFound, name)
	}
	filename := s.Filename
	s.Recording = false
	s.Filename = ""
	s.Since = time.Time{}
	r.logger.Info("recording stopped", "stream", name, "file", filename)
	return filename, nil
}
