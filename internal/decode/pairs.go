package decode

import (
	"strings"
	"time"

	"github.com/whalewatch/whaletx/internal/cache"
)

// PairInfo identifies the two tokens behind an AMM pool address. Unknown
// pairs degrade decode quality (no symbols for direction resolution) but do
// not block decoding of the raw amounts.
type PairInfo struct {
	Pool         string
	Token0       string
	Token1       string
	Token0Symbol string
	Token1Symbol string
}

// PairRegistry caches pool → token-pair metadata. Seeded with well-known
// mainnet pools at startup; runtime discoveries are added with a TTL so a
// migrated or fake pool cannot stay wrong forever.
type PairRegistry struct {
	static map[string]PairInfo
	cache  *cache.TTLCache[string, PairInfo]
}

func NewPairRegistry(capacity int, ttl time.Duration) *PairRegistry {
	if capacity <= 0 {
		capacity = 4096
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	r := &PairRegistry{
		static: make(map[string]PairInfo, len(wellKnownPairs)),
		cache:  cache.NewTTL[string, PairInfo](capacity, ttl),
	}
	for _, p := range wellKnownPairs {
		r.static[strings.ToLower(p.Pool)] = p
	}
	return r
}

// Lookup returns pair metadata for a pool address if known.
func (r *PairRegistry) Lookup(pool string) (PairInfo, bool) {
	key := strings.ToLower(pool)
	if p, ok := r.static[key]; ok {
		return p, true
	}
	return r.cache.Get(key)
}

// Put records a discovered pair (e.g. from an on-chain token0()/token1()
// probe done by an enrichment job).
func (r *PairRegistry) Put(info PairInfo) {
	r.cache.Set(strings.ToLower(info.Pool), info)
}

// wellKnownPairs covers the highest-volume mainnet pools. The list is
// intentionally small: anything else arrives via Put.
var wellKnownPairs = []PairInfo{
	{
		Pool:         "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc",
		Token0:       "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Token1:       "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Token0Symbol: "USDC",
		Token1Symbol: "WETH",
	},
	{
		Pool:         "0x0d4a11d5eeaac28ec3f61d100daf4d40471f1852",
		Token0:       "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Token1:       "0xdac17f958d2ee523a2206206994597c13d831ec7",
		Token0Symbol: "WETH",
		Token1Symbol: "USDT",
	},
	{
		Pool:         "0xa478c2975ab1ea89e8196811f51a7b7ade33eb11",
		Token0:       "0x6b175474e89094c44da98b954eedeac495271d0f",
		Token1:       "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Token0Symbol: "DAI",
		Token1Symbol: "WETH",
	},
	{
		Pool:         "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
		Token0:       "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Token1:       "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Token0Symbol: "USDC",
		Token1Symbol: "WETH",
	},
	{
		Pool:         "0xcbcdf9626bc03e24f779434178a73a0b4bad62ed",
		Token0:       "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599",
		Token1:       "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Token0Symbol: "WBTC",
		Token1Symbol: "WETH",
	},
}
