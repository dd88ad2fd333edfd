package catalog

import (
	"fmt"
	"math/rand/v2"

	"vpnrotator/internal/domain"
)

const (
	DefaultSize  = 60
	MinSize      = 2
	firstIDIndex = 1000

	minPort     = 1000
	maxPort     = 65535
	minLatency  = 20
	latencySpan = 300
)

// Generate builds size synthetic descriptors using independent uniform draws
// from rng. Ids are sequential (px-1000, px-1001, ...); IPs and ports may repeat.
func Generate(rng *rand.Rand, size int) (*Catalog, error) {
	if size < MinSize {
		return nil, fmt.Errorf("catalog: %w: size %d below minimum %d", ErrCatalogTooSmall, size, MinSize)
	}

	proxies := make([]domain.ProxyDescriptor, size)
	for i := range proxies {
		loc := locations[rng.IntN(len(locations))]
		proxies[i] = domain.ProxyDescriptor{
			ID:          fmt.Sprintf("px-%d", firstIDIndex+i),
			IP:          randomIP(rng),
			Port:        uint16(minPort + rng.IntN(maxPort-minPort+1)),
			Country:     loc.name,
			CountryCode: loc.code,
			City:        loc.cities[rng.IntN(len(loc.cities))],
			Latency:     minLatency + rng.IntN(latencySpan),
			Protocol:    domain.Protocols[rng.IntN(len(domain.Protocols))],
			Encryption:  domain.Encryptions[rng.IntN(len(domain.Encryptions))],
		}
	}

	return New(proxies)
}

// NewRand returns a generator seeded with seed, or with a random seed when
// seed is zero.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func randomIP(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d", rng.IntN(256), rng.IntN(256), rng.IntN(256), rng.IntN(256))
}
