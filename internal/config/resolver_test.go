package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolverConfigHolderDefaults(t *testing.T) {
	holder := NewStaticResolverConfigHolder(ResolverConfig{})

	cfg := holder.Get()
	assert.Equal(t, TieBreakLowestID, cfg.TieBreak)
	assert.Equal(t, DefaultSystemActor, cfg.SystemActor)
	assert.Empty(t, cfg.AssignableTypes)
}

func TestResolverConfigHolderSet(t *testing.T) {
	holder := NewStaticResolverConfigHolder(DefaultResolverConfig())

	require.NoError(t, holder.Set(ResolverConfig{TieBreak: " Oldest ", AssignableTypes: []string{"Lead", " "}}))
	cfg := holder.Get()
	assert.Equal(t, TieBreakOldest, cfg.TieBreak)
	assert.Equal(t, []string{"Lead"}, cfg.AssignableTypes)

	err := holder.Set(ResolverConfig{TieBreak: "random"})
	assert.Error(t, err)
	assert.Equal(t, TieBreakOldest, holder.Get().TieBreak)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *ResolverConfigHolder
	assert.Equal(t, DefaultResolverConfig(), holder.Get())
}
