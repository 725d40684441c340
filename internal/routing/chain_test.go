package routing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"ai_orchestrator/internal/models"
)

func provider(id string, priority int, active bool) models.Provider {
	return models.Provider{ID: id, DisplayName: id, Type: models.ProviderTypeHostedCompletion, Priority: priority, Active: active}
}

func TestBuildChain_OrdersByPriorityThenID(t *testing.T) {
	providers := []models.Provider{
		provider("c", 50, true),
		provider("a", 100, true),
		provider("b", 50, true),
		provider("off", 1000, false),
		provider("d", 80, true),
	}

	assert.Equal(t, []string{"a", "d", "b", "c"}, BuildChain(providers))
}

func TestBuildChain_Empty(t *testing.T) {
	assert.Empty(t, BuildChain(nil))
	assert.Empty(t, BuildChain([]models.Provider{provider("x", 1, false)}))
}

func TestBuildChain_DeterministicAcrossInsertionOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		n := rng.Intn(12)
		providers := make([]models.Provider, n)
		for i := range providers {
			providers[i] = provider(fmt.Sprintf("p%02d", i), rng.Intn(4)*10, rng.Intn(5) != 0)
		}

		want := BuildChain(providers)

		shuffled := append([]models.Provider(nil), providers...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		assert.Equal(t, want, BuildChain(shuffled), "round %d", round)
		assert.Equal(t, want, BuildChain(providers), "idempotent, round %d", round)
	}
}
