package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFidelityValid(t *testing.T) {
	for _, f := range []Fidelity{FidelityFull, FidelitySummary, FidelityStub, FidelityTombstone} {
		assert.True(t, f.Valid(), "%s should be valid", f)
	}
	assert.False(t, Fidelity("partial").Valid())
	assert.False(t, Fidelity("").Valid())
}

func TestFidelityRank(t *testing.T) {
	assert.Greater(t, FidelityFull.Rank(), FidelitySummary.Rank())
	assert.Greater(t, FidelitySummary.Rank(), FidelityStub.Rank())
	assert.Greater(t, FidelityStub.Rank(), FidelityTombstone.Rank())
	assert.Equal(t, -1, Fidelity("bogus").Rank())
}

func TestItemLive(t *testing.T) {
	it := Item{UUID: "soil-a"}
	assert.True(t, it.Live())

	it.SupersededBy = "soil-b"
	assert.False(t, it.Live())
}
