package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/finnhub"
	"quotefetcher/internal/simulator"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeSimulated, false},
		{"simulated", ModeSimulated, false},
		{"MOCK", ModeSimulated, false},
		{"remote", ModeRemote, false},
		{" Finnhub ", ModeRemote, false},
		{"yahoo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_LazySimulated(t *testing.T) {
	s := NewSelector(ModeSimulated, RemoteConfig{}, nil, nil)
	assert.False(t, s.Ready())

	p := s.Provider()
	assert.True(t, s.Ready())
	assert.IsType(t, &simulator.Provider{}, p)
	assert.Equal(t, simulator.Name, p.Name())
}

func TestSelector_Remote(t *testing.T) {
	s := NewSelector(ModeRemote, RemoteConfig{APIKey: "k", Policy: fetcher.DefaultRetryPolicy()}, nil, nil)

	p := s.Provider()
	assert.IsType(t, &finnhub.Client{}, p)
	assert.Equal(t, finnhub.Name, p.Name())
}

func TestSelector_SameInstanceForAllCallers(t *testing.T) {
	s := NewSelector(ModeRemote, RemoteConfig{}, nil, nil)

	var wg sync.WaitGroup
	got := make([]fetcher.Provider, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.Provider()
		}(i)
	}
	wg.Wait()

	for _, p := range got {
		assert.Same(t, got[0], p)
	}
}
