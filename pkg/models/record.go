package models

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"
)

// Record is a loaded or synthetic multi-channel recording.
// It is immutable once built; every accessor returns copies.
type Record struct {
	start       time.Time
	duration    float64
	source      string
	synthetic   bool
	channels    map[ChannelName]*Channel
	fingerprint string
}

// RecordOptions describes how a record was obtained
type RecordOptions struct {
	StartTime time.Time
	Source    string
	Synthetic bool
}

// sampleCountTolerance returns how far a channel's sample count may drift from duration*rate
func sampleCountTolerance(expected float64) float64 {
	return math.Max(1, 0.01*expected)
}

// NewRecord validates that every channel agrees with the record duration
func NewRecord(opts RecordOptions, durationSeconds float64, channels ...*Channel) (*Record, error) {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return nil, fmt.Errorf("record duration must be positive, got %v", durationSeconds)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("record has no channels")
	}

	byName := make(map[ChannelName]*Channel, len(channels))
	for _, ch := range channels {
		if ch == nil {
			return nil, fmt.Errorf("record contains a nil channel")
		}
		if _, dup := byName[ch.Name()]; dup {
			return nil, fmt.Errorf("duplicate channel %s", ch.Name())
		}
		expected := durationSeconds * ch.SampleRate()
		if math.Abs(float64(ch.Len())-expected) > sampleCountTolerance(expected) {
			return nil, fmt.Errorf("channel %s has %d samples, expected about %.0f for %.1fs at %.2fHz",
				ch.Name(), ch.Len(), expected, durationSeconds, ch.SampleRate())
		}
		byName[ch.Name()] = ch
	}

	r := &Record{
		start:     opts.StartTime,
		duration:  durationSeconds,
		source:    opts.Source,
		synthetic: opts.Synthetic,
		channels:  byName,
	}
	r.fingerprint = r.computeFingerprint()
	return r, nil
}

func (r *Record) StartTime() time.Time { return r.start }
func (r *Record) Duration() float64    { return r.duration }
func (r *Record) Source() string       { return r.source }
func (r *Record) Synthetic() bool      { return r.synthetic }
func (r *Record) Fingerprint() string  { return r.fingerprint }

// Channel returns the named channel, if present
func (r *Record) Channel(name ChannelName) (*Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// ChannelNames lists the channels present, in display order
func (r *Record) ChannelNames() []ChannelName {
	names := make([]ChannelName, 0, len(r.channels))
	for _, name := range AllChannels {
		if _, ok := r.channels[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Window returns the timestamps and samples of one channel for t in [start, end).
// The span is clamped to the record, so it never reads outside the sample buffer.
func (r *Record) Window(name ChannelName, start, end float64) ([]float64, []float64, error) {
	ch, ok := r.channels[name]
	if !ok {
		return nil, nil, fmt.Errorf("channel %s not in record", name)
	}
	lo, hi := ch.IndexRange(start, end)
	times := make([]float64, hi-lo)
	values := make([]float64, hi-lo)
	for i := lo; i < hi; i++ {
		times[i-lo] = float64(i) / ch.SampleRate()
		values[i-lo] = ch.samples[i]
	}
	return times, values, nil
}

func (r *Record) computeFingerprint() string {
	h := fnv.New64a()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var buf [8]byte
	for _, name := range names {
		ch := r.channels[ChannelName(name)]
		h.Write([]byte(name))
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(ch.sampleRate))
		h.Write(buf[:])
		for _, v := range ch.samples {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
