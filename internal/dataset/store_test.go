package dataset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/units"
)

type fakeFetcher struct {
	text string
	err  error
}

func (f fakeFetcher) FetchText(context.Context) (string, error) {
	return f.text, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleText(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile("../oem/testdata/iss_sample.txt")
	require.NoError(t, err)
	return string(raw)
}

func loadedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testLogger())
	_, err := s.Reload(context.Background(), fakeFetcher{text: sampleText(t)}, "test")
	require.NoError(t, err)
	return s
}

func TestNewStoreIsCleared(t *testing.T) {
	s := NewStore(testLogger())
	ds := s.Get()
	require.NotNil(t, ds)
	assert.True(t, ds.Empty())
	assert.Equal(t, units.None, ds.Units)
	assert.Equal(t, -1.0, s.AgeSeconds())
}

func TestReload(t *testing.T) {
	s := loadedStore(t)
	ds := s.Get()
	assert.Len(t, ds.Records, 10)
	assert.Equal(t, units.SI, ds.Units)
	assert.Equal(t, "test", ds.Source)
	assert.GreaterOrEqual(t, s.AgeSeconds(), 0.0)
}

func TestReloadFailureKeepsDataset(t *testing.T) {
	tests := []struct {
		name    string
		fetcher fakeFetcher
	}{
		{"fetch error", fakeFetcher{err: oem.ErrFetch}},
		{"parse error", fakeFetcher{text: "COMMENT End sequence of events\n2023-02-15T12:00:00.000 1 2\n"}},
		{"bad number", fakeFetcher{text: "COMMENT End sequence of events\n2023-02-15T12:00:00.000 1 2 3 4 5 abc\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadedStore(t)
			before := s.Get()

			_, err := s.Reload(context.Background(), tt.fetcher, "broken")
			require.Error(t, err)

			after := s.Get()
			assert.Same(t, before, after)
			assert.Len(t, after.Records, 10)
			assert.Equal(t, "2023-02-15T12:00:00.000", after.Records[0].Epoch)
		})
	}
}

func TestReloadParseErrorType(t *testing.T) {
	s := NewStore(testLogger())
	_, err := s.Reload(context.Background(), fakeFetcher{text: "COMMENT End sequence of events\nbogus\n"}, "x")

	var pe *oem.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
}

func TestClear(t *testing.T) {
	s := loadedStore(t)
	s.Clear()

	ds := s.Get()
	assert.True(t, ds.Empty())
	assert.Equal(t, units.None, ds.Units)

	_, err := s.Convert(units.USCS)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestConvertRoundTrip(t *testing.T) {
	s := loadedStore(t)
	orig := s.Get().Records

	res, err := s.Convert(units.USCS)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, units.USCS, s.Get().Units)
	assert.InDelta(t, orig[0].Position.X*units.KmToMi, s.Get().Records[0].Position.X, 1e-9)

	// the previous snapshot is untouched by conversion
	assert.InDelta(t, -2826.053166991644, orig[0].Position.X, 1e-12)

	_, err = s.Convert(units.SI)
	require.NoError(t, err)
	back := s.Get().Records
	for i := range orig {
		assert.InDelta(t, orig[i].Position.X, back[i].Position.X, 1e-9)
		assert.InDelta(t, orig[i].Velocity.Z, back[i].Velocity.Z, 1e-12)
	}
}

func TestConvertNoOp(t *testing.T) {
	s := loadedStore(t)
	before := s.Get()

	res, err := s.Convert(units.SI)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Same(t, before, s.Get())
}

func TestConvertInvalidToken(t *testing.T) {
	s := loadedStore(t)
	_, err := s.Convert(units.System("furlongs"))
	assert.ErrorIs(t, err, units.ErrInvalidUnitToken)
	assert.Equal(t, units.SI, s.Get().Units)
}

func TestReloadResetsUnits(t *testing.T) {
	s := loadedStore(t)
	_, err := s.Convert(units.USCS)
	require.NoError(t, err)

	_, err = s.Reload(context.Background(), fakeFetcher{text: sampleText(t)}, "again")
	require.NoError(t, err)
	assert.Equal(t, units.SI, s.Get().Units)
}

func TestConcurrentReadsDuringConvert(t *testing.T) {
	s := loadedStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ds := s.Get()
				if len(ds.Records) != 10 {
					t.Errorf("partial snapshot: %d records", len(ds.Records))
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		target := units.USCS
		if i%2 == 1 {
			target = units.SI
		}
		_, err := s.Convert(target)
		require.NoError(t, err)
	}
	wg.Wait()
}
