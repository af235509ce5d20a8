package signal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// writeExport writes rows of `columns` values at 10 Hz (100 ms steps)
func writeExport(t *testing.T, name string, columns, rows int, header string, sep string) string {
	t.Helper()
	var sb strings.Builder
	if header != "" {
		sb.WriteString(header + "\n")
	}
	for i := 0; i < rows; i++ {
		fields := make([]string, columns)
		fields[0] = fmt.Sprintf("%d", i*100)
		for c := 1; c < columns; c++ {
			fields[c] = fmt.Sprintf("%.3f", math.Sin(float64(i)*0.1+float64(c)))
		}
		sb.WriteString(strings.Join(fields, sep) + "\n")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func testStore(fetcher Fetcher) Store {
	return NewStore(Options{MinRecordSeconds: 10, MockDurationSeconds: 3600, MockSeed: 7}, fetcher)
}

func TestNormalize(t *testing.T) {
	t.Run("min max scaling", func(t *testing.T) {
		assert.Equal(t, []float64{0, 0.5, 1}, Normalize([]float64{2, 4, 6}))
	})

	t.Run("constant signal", func(t *testing.T) {
		assert.Equal(t, []float64{0.5, 0.5, 0.5}, Normalize([]float64{3, 3, 3}))
	})

	t.Run("non-finite replaced by median", func(t *testing.T) {
		out := Normalize([]float64{0, math.NaN(), 10, math.Inf(1), 5})
		assert.Equal(t, []float64{0, 0.5, 1, 0.5, 0.5}, out)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Normalize(nil))
	})
}

func TestMovingAverage(t *testing.T) {
	in := []float64{0, 0, 0, 1, 0, 0, 0}
	out := MovingAverage(in, 2) // forced up to 3

	require.Len(t, out, len(in))
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 1.0, out[2])
	assert.Equal(t, 1.0, out[3])
	assert.Equal(t, 1.0, out[4])
	assert.Equal(t, 0.0, out[0])
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(Median([]float64{math.NaN()})))
}

func TestGenerateMock_AllChannels(t *testing.T) {
	rec := GenerateMock(3600, 1)

	assert.True(t, rec.Synthetic())
	assert.Equal(t, 3600.0, rec.Duration())
	require.Len(t, rec.ChannelNames(), len(models.AllChannels))

	for _, name := range models.AllChannels {
		ch, ok := rec.Channel(name)
		require.True(t, ok, name)
		expected := ch.SampleRate() * 3600
		assert.InDelta(t, expected, float64(ch.Len()), 1, name)
		assert.Greater(t, ch.Len(), 0)
	}

	eeg, _ := rec.Channel(models.ChannelC3A2)
	assert.Equal(t, MockEEGSampleRate, eeg.SampleRate())
	flow, _ := rec.Channel(models.ChannelAirflow)
	assert.Equal(t, MockSampleRate, flow.SampleRate())
}

func TestGenerateMock_DeterministicAndDefaults(t *testing.T) {
	a := GenerateMock(3600, 99)
	b := GenerateMock(3600, 99)
	c := GenerateMock(3600, 100)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	pos, _ := a.Channel(models.ChannelBodyPosition)
	assert.Equal(t, 0.0, pos.At(0))
}

func TestGenerateMock_NonPositiveDurationUsesDefault(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping eight hour mock in short mode")
	}
	rec := GenerateMock(-1, 1)
	assert.Equal(t, DefaultMockDuration, rec.Duration())
}

func TestLoad_FullLayoutWithEEG(t *testing.T) {
	path := writeExport(t, "study.csv", 16, 200, "time,snore,flow,thorax,abdomen,spo2,pleth,pulse,pos,act,c3,c4,f3,f4,o1,o2", ",")

	rec, err := testStore(nil).Load(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, rec.Synthetic())
	assert.InDelta(t, 20.0, rec.Duration(), 1e-9)
	assert.Equal(t, path, rec.Source())

	c3, ok := rec.Channel(models.ChannelC3A2)
	require.True(t, ok)
	assert.InDelta(t, 10.0, c3.SampleRate(), 1e-9)
	assert.Equal(t, 200, c3.Len())

	flow, _ := rec.Channel(models.ChannelAirflow)
	assert.InDelta(t, math.Sin(2), flow.At(0), 1e-3)
}

func TestLoad_DeviceLayoutSynthesisesMissingChannels(t *testing.T) {
	path := writeExport(t, "DATA0025.TXT", 10, 300, "", "\t")

	rec, err := testStore(nil).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rec.ChannelNames(), len(models.AllChannels))

	pulse, _ := rec.Channel(models.ChannelPulse)
	assert.InDelta(t, math.Sin(2), pulse.At(0), 1e-3)
	flow, _ := rec.Channel(models.ChannelAirflow)
	assert.InDelta(t, math.Sin(7), flow.At(0), 1e-3)

	c3, _ := rec.Channel(models.ChannelC3A2)
	assert.Equal(t, MockEEGSampleRate, c3.SampleRate())
	assert.Equal(t, 960, c3.Len())
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	s := testStore(nil)

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := s.Load(ctx, "recording.edf")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		var ufe *UnsupportedFormatError
		require.True(t, errors.As(err, &ufe))
		assert.Equal(t, ".edf", ufe.Extension)
	})

	t.Run("unknown layout", func(t *testing.T) {
		path := writeExport(t, "narrow.csv", 11, 200, "", ",")
		_, err := s.Load(ctx, path)
		assert.ErrorIs(t, err, ErrUnknownLayout)
	})

	t.Run("too short", func(t *testing.T) {
		path := writeExport(t, "short.csv", 12, 50, "", ",")
		_, err := s.Load(ctx, path)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := s.Load(ctx, filepath.Join(t.TempDir(), "absent.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Load(cctx, "anything.csv")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseTable_DropsRowsWithUnparsableFields(t *testing.T) {
	input := strings.Join([]string{
		"time,flow,spo2",
		"0,0.5,97",
		"100,oops,97",
		"200,0.4,NaN",
		"300,0.3",
		"400,0.2,+Inf",
		"x,0.1,96",
		"500,0.1,96",
	}, "\n")

	tbl, err := parseTable(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.columns)
	assert.Equal(t, 5, tbl.skipped)
	require.Len(t, tbl.rows, 2)
	assert.Equal(t, []float64{0, 0.5, 97}, tbl.rows[0])
	assert.Equal(t, []float64{500, 0.1, 96}, tbl.rows[1])
}

func TestLoad_MalformedFieldsNeverReachTheRecord(t *testing.T) {
	path := writeExport(t, "gappy.csv", 12, 200, "", ",")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for _, i := range []int{10, 50, 51, 120} {
		fields := strings.Split(lines[i], ",")
		fields[7] = "--"
		lines[i] = strings.Join(fields, ",")
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	rec, err := testStore(nil).Load(context.Background(), path)
	require.NoError(t, err)

	for _, name := range rec.ChannelNames() {
		ch, ok := rec.Channel(name)
		require.True(t, ok)
		for _, v := range ch.Samples() {
			require.False(t, math.IsNaN(v), "NaN sample in %s", name)
		}
	}
	airflow, ok := rec.Channel(models.ChannelAirflow)
	require.True(t, ok)
	assert.Equal(t, 196, airflow.Len())
}

func TestLoad_FromArchive(t *testing.T) {
	path := writeExport(t, "remote.csv", 12, 200, "", ",")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	fetcher := new(MockFetcher)
	fetcher.On("DownloadFile", mock.Anything, "studies/remote.csv").Return(data, nil)

	rec, err := testStore(fetcher).Load(context.Background(), "s3://studies/remote.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://studies/remote.csv", rec.Source())
	fetcher.AssertExpectations(t)
}

func TestLoadOrMock_FallsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := testStore(nil)

	for _, source := range []string{
		filepath.Join(t.TempDir(), "missing.csv"),
		"notes.pdf",
		"",
		"s3://no-archive.csv",
	} {
		res := s.LoadOrMock(ctx, source)
		require.NotNil(t, res.Record, source)
		assert.True(t, res.Fallback, source)
		assert.True(t, res.Record.Synthetic())
		assert.Error(t, res.Reason)
		assert.Contains(t, res.Notice(), MockBanner)
		assert.Equal(t, 3600.0, res.Record.Duration())
		assert.NotEmpty(t, res.Record.ChannelNames())
	}
}

func TestLoadOrMock_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.txt")
	require.NoError(t, os.WriteFile(path, []byte("not,a,recording\n\x00\x01garbage\n"), 0o644))

	res := testStore(nil).LoadOrMock(context.Background(), path)
	assert.True(t, res.Fallback)
	assert.True(t, res.Record.Synthetic())
}

func TestLoadOrMock_NoFallbackOnSuccess(t *testing.T) {
	path := writeExport(t, "ok.csv", 12, 200, "", ",")
	res := testStore(nil).LoadOrMock(context.Background(), path)
	assert.False(t, res.Fallback)
	assert.Empty(t, res.Notice())
	assert.False(t, res.Record.Synthetic())
}

func TestSampleRateFromTimes(t *testing.T) {
	assert.Equal(t, defaultSampleRate, sampleRateFromTimes([]float64{0, 1}))
	assert.Equal(t, defaultSampleRate, sampleRateFromTimes([]float64{1, 1, 1}))
	assert.InDelta(t, 4.0, sampleRateFromTimes([]float64{0, 0.25, 0.5, 0.75, 5}), 1e-9)
}

func TestNormalizeRecord(t *testing.T) {
	rec := GenerateMock(3600, 3)
	set := NormalizeRecord(rec)

	for _, name := range rec.ChannelNames() {
		s, ok := set.Series(name)
		require.True(t, ok)
		ch, _ := rec.Channel(name)
		assert.Len(t, s, ch.Len())
	}
	require.NotNil(t, set.AirflowPlot)
	plot, _ := set.DisplaySeries(models.ChannelAirflow)
	assert.Equal(t, set.AirflowPlot, plot)
}
