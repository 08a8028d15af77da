package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

func TestActiveProfileReporter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	report := activeProfileReporter(zap.New(core), true)

	work := []domain.ProfileStatus{
		{Name: "home", Status: domain.NoMatch},
		{Name: "work", Status: domain.FullMatch},
	}
	none := []domain.ProfileStatus{{Name: "work", Status: domain.PartialMatch}}

	report(work)
	report(work) // unchanged, not logged again
	report(none)

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "active profile changed", entries[0].Message)
		assert.Equal(t, "work", entries[0].ContextMap()["profile"])
		assert.Equal(t, "live settings no longer match any profile", entries[1].Message)
	}
}

func TestActiveProfileReporter_Silent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	report := activeProfileReporter(zap.New(core), false)

	report([]domain.ProfileStatus{{Name: "work", Status: domain.FullMatch}})
	assert.Zero(t, logs.Len())
}

func TestStatusMarker(t *testing.T) {
	assert.Equal(t, "*", statusMarker(domain.FullMatch))
	assert.Equal(t, "~", statusMarker(domain.PartialMatch))
	assert.Equal(t, " ", statusMarker(domain.NoMatch))
	assert.Equal(t, "!", statusMarker(domain.ErrorStatus("boom")))
}

func TestDaemonArgs(t *testing.T) {
	defer func() { flagDir, flagConfig = "", "" }()

	flagDir, flagConfig = "", ""
	assert.Empty(t, daemonArgs())

	flagDir, flagConfig = "/tmp/claude", "/tmp/cfg.yaml"
	assert.Equal(t, []string{"--dir", "/tmp/claude", "--config", "/tmp/cfg.yaml"}, daemonArgs())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123abcd", shortID("0123abcd-4567"))
	assert.Equal(t, "abc", shortID("abc"))
}
