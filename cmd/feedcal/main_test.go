package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"feedcal/internal/config"
)

func TestBuildOptions(t *testing.T) {
	conf := config.DefaultConfig()
	conf.TimeoutMS = 2500
	conf.Window = config.WindowConfig{
		StartOffsetDays:   -1,
		EndOffsetDays:     3,
		MaxEntries:        5,
		IncludeRecentPast: true,
		RecentPastMinutes: 90,
	}

	opts := buildOptions(conf)
	assert.Equal(t, -1, opts.StartOffsetDays)
	assert.Equal(t, 3, opts.EndOffsetDays)
	assert.Equal(t, 5, opts.MaxEntries)
	assert.Equal(t, 2500*time.Millisecond, opts.PerSourceTimeout)
	assert.True(t, opts.IncludeRecentPastTimed)
	assert.Equal(t, 90*time.Minute, opts.RecentPast)
	assert.Empty(t, opts.Policies)
}

func TestBuildOptions_Defaults(t *testing.T) {
	opts := buildOptions(config.DefaultConfig())
	assert.Equal(t, 0, opts.StartOffsetDays)
	assert.Equal(t, 7, opts.EndOffsetDays)
	assert.Equal(t, 20, opts.MaxEntries)
	assert.Equal(t, 10*time.Second, opts.PerSourceTimeout)
	assert.False(t, opts.IncludeRecentPastTimed)
}
