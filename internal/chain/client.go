// Package chain adapts a JSON-RPC endpoint plus an optional block explorer
// into the read-only data port the routing and risk engines consume. All
// reads are rate limited, breaker protected, and TTL cached.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/exchange"
	"github.com/dexsniper/sniperd/internal/metrics"
)

// Config carries the per-network connection settings.
type Config struct {
	Network       string
	RPCURL        string
	ExplorerURL   string
	ExplorerKey   string
	WrappedNative common.Address
	Stables       []common.Address
	CallTimeout   time.Duration
	RPCRate       float64 // sustained requests per second against the RPC node
	RPCBurst      int
	TokenTTL      time.Duration
	PoolTTL       time.Duration
	PriceTTL      time.Duration
}

// Client implements domain.ChainDataPort and domain.AllowanceOracle over an
// EVM JSON-RPC endpoint.
type Client struct {
	cfg      Config
	eth      *ethclient.Client
	registry *exchange.Registry
	explorer *ExplorerClient
	cache    domain.QuoteCache
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	rec      *metrics.Recorder
	logger   *slog.Logger
}

var (
	_ domain.ChainDataPort   = (*Client)(nil)
	_ domain.AllowanceOracle = (*Client)(nil)
)

// New dials the RPC endpoint and builds the client. cache and rec may be nil
// (no caching, no metrics); the explorer is built only when an URL is
// configured.
func New(ctx context.Context, cfg Config, registry *exchange.Registry, cache domain.QuoteCache, rec *metrics.Recorder, logger *slog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: rpc url is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.RPCRate <= 0 {
		cfg.RPCRate = 20
	}
	if cfg.RPCBurst <= 0 {
		cfg.RPCBurst = 10
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.Network, err)
	}

	settings := gobreaker.Settings{
		Name:     "rpc-" + cfg.Network,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 5 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}

	var explorer *ExplorerClient
	if cfg.ExplorerURL != "" {
		explorer = NewExplorerClient(cfg.ExplorerURL, cfg.ExplorerKey)
	}

	return &Client{
		cfg:      cfg,
		eth:      eth,
		registry: registry,
		explorer: explorer,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPCRate), cfg.RPCBurst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		rec:      rec,
		logger:   logger.With(slog.String("component", "chain"), slog.String("network", cfg.Network)),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Network returns the network this client is bound to.
func (c *Client) Network() string { return c.cfg.Network }

// Registry returns the venue table this client prices against.
func (c *Client) Registry() *exchange.Registry { return c.registry }

// do runs one RPC call through the rate limiter and circuit breaker with the
// per-call timeout applied.
func (c *Client) do(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chain: %s: %w", method, err)
	}
	_, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
		return nil, fn(callCtx)
	})
	c.rec.RecordRPC(method, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("chain: %s: %w", method, domain.ErrDataUnavailable)
		}
		return fmt.Errorf("chain: %s: %w", method, err)
	}
	return nil
}

// call performs eth_call against a contract with hand-packed calldata.
func (c *Client) call(ctx context.Context, method string, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, method, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return callErr
	})
	return out, err
}

// GetTokenInfo resolves ERC-20 metadata. Individual metadata calls failing
// or returning garbage mark the field missing instead of failing the whole
// lookup.
func (c *Client) GetTokenInfo(ctx context.Context, token common.Address) (*domain.TokenInfo, error) {
	cacheKey := token.Hex()
	var cached domain.TokenInfo
	if hit := c.cacheGet(ctx, domain.CacheNSTokens, cacheKey, &cached); hit {
		return &cached, nil
	}

	info := domain.TokenInfo{Address: token}
	var failures int

	if ret, err := c.call(ctx, "erc20.decimals", token, selDecimals); err != nil {
		failures++
	} else if v, err := decodeUint(ret); err == nil && v.IsUint64() && v.Uint64() <= 255 {
		info.Decimals = uint8(v.Uint64())
		info.HasDecimals = true
	}

	if ret, err := c.call(ctx, "erc20.symbol", token, selSymbol); err != nil {
		failures++
	} else if s, err := decodeString(ret); err == nil && s != "" {
		info.Symbol = s
		info.HasSymbol = true
	}

	if ret, err := c.call(ctx, "erc20.name", token, selName); err != nil {
		failures++
	} else if s, err := decodeString(ret); err == nil && s != "" {
		info.Name = s
		info.HasName = true
	}

	if ret, err := c.call(ctx, "erc20.totalSupply", token, selTotalSupply); err != nil {
		failures++
	} else if v, err := decodeUint(ret); err == nil {
		dec := info.Decimals
		if !info.HasDecimals {
			dec = 18
		}
		info.TotalSupply = exchange.ToUnits(v, dec)
	}

	// four transport failures means the node, not the token, is the problem
	if failures == 4 {
		return nil, fmt.Errorf("chain: token info %s: %w", token.Hex(), domain.ErrDataUnavailable)
	}

	c.cacheSet(ctx, domain.CacheNSTokens, cacheKey, info, c.cfg.TokenTTL)
	return &info, nil
}

// GetPoolInfo probes the CREATE2 pair address for the pair on one venue and
// snapshots its reserves. Returns (nil, nil) when no pool exists.
func (c *Client) GetPoolInfo(ctx context.Context, tokenA, tokenB common.Address, exchangeID domain.ExchangeID) (*domain.LiquidityPool, error) {
	if tokenA == tokenB {
		return nil, fmt.Errorf("chain: %w: identical tokens", domain.ErrInvalidPair)
	}
	desc, err := c.registry.Get(exchangeID)
	if err != nil {
		return nil, err
	}

	pair := desc.PairAddress(tokenA, tokenB)
	cacheKey := string(exchangeID) + ":" + pair.Hex()
	var cached domain.LiquidityPool
	if hit := c.cacheGet(ctx, domain.CacheNSPools, cacheKey, &cached); hit {
		return &cached, nil
	}

	ret, err := c.call(ctx, "pair.getReserves", pair, selGetReserves)
	if err != nil {
		return nil, err
	}
	if len(ret) == 0 {
		// nothing deployed at the derived address
		return nil, nil
	}
	rawReserve0, rawReserve1, err := decodeReserves(ret)
	if err != nil {
		return nil, fmt.Errorf("chain: pair %s: %w", pair.Hex(), err)
	}

	token0Addr, token1Addr := exchange.SortTokens(tokenA, tokenB)
	info0, err := c.GetTokenInfo(ctx, token0Addr)
	if err != nil {
		return nil, err
	}
	info1, err := c.GetTokenInfo(ctx, token1Addr)
	if err != nil {
		return nil, err
	}

	var blockNumber uint64
	if err := c.do(ctx, "eth.blockNumber", func(ctx context.Context) error {
		var bnErr error
		blockNumber, bnErr = c.eth.BlockNumber(ctx)
		return bnErr
	}); err != nil {
		c.logger.Debug("block number lookup failed", slog.String("error", err.Error()))
	}

	pool := domain.LiquidityPool{
		Address:     pair,
		Exchange:    exchangeID,
		Token0:      info0.Ref(),
		Token1:      info1.Ref(),
		Reserve0:    exchange.ToUnits(rawReserve0, info0.Decimals),
		Reserve1:    exchange.ToUnits(rawReserve1, info1.Decimals),
		FeeRate:     desc.FeeRate,
		BlockNumber: blockNumber,
		SampledAt:   time.Now().UTC(),
	}
	pool.LiquidityUSD = c.estimateLiquidityUSD(ctx, pool)

	c.cacheSet(ctx, domain.CacheNSPools, cacheKey, pool, c.cfg.PoolTTL)
	return &pool, nil
}

// GetTokenPools probes every configured venue for pools pairing the token
// against the wrapped native and the configured stables. Lookups fan out
// concurrently; individual failures are dropped, not propagated.
func (c *Client) GetTokenPools(ctx context.Context, token common.Address) ([]domain.LiquidityPool, error) {
	counters := make([]common.Address, 0, 1+len(c.cfg.Stables))
	if c.cfg.WrappedNative != (common.Address{}) && c.cfg.WrappedNative != token {
		counters = append(counters, c.cfg.WrappedNative)
	}
	for _, s := range c.cfg.Stables {
		if s != token {
			counters = append(counters, s)
		}
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		results = make(chan domain.LiquidityPool, len(counters)*c.registry.Len())
	)
	g.SetLimit(c.registry.Len())

	for _, desc := range c.registry.All() {
		for _, counter := range counters {
			g.Go(func() error {
				pool, err := c.GetPoolInfo(gctx, token, counter, desc.ID)
				if err != nil {
					c.logger.Debug("pool lookup failed",
						slog.String("exchange", string(desc.ID)),
						slog.String("token", token.Hex()),
						slog.String("error", err.Error()))
					return nil
				}
				if pool != nil {
					results <- *pool
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	pools := make([]domain.LiquidityPool, 0, len(results))
	for pool := range results {
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool {
		if pools[i].LiquidityUSD != pools[j].LiquidityUSD {
			return pools[i].LiquidityUSD > pools[j].LiquidityUSD
		}
		return pools[i].Address.Hex() < pools[j].Address.Hex()
	})
	return pools, nil
}

// GetPrice aggregates a liquidity-weighted price for token. With the zero
// quote address the price is in USD, combined across stable and wrapped
// native pools; otherwise only direct pools against the quote token count.
// Returns (nil, nil) when no pool can price the token.
func (c *Client) GetPrice(ctx context.Context, token common.Address, quote common.Address) (*domain.PriceSample, error) {
	cacheKey := token.Hex() + ":" + quote.Hex()
	var cached domain.PriceSample
	if hit := c.cacheGet(ctx, domain.CacheNSPrices, cacheKey, &cached); hit {
		return &cached, nil
	}

	pools, err := c.GetTokenPools(ctx, token)
	if err != nil {
		return nil, err
	}

	var (
		weightedSum float64
		totalWeight float64
		totalLiq    float64
		count       int
	)
	for _, pool := range pools {
		counter, ok := pool.OtherToken(token)
		if !ok {
			continue
		}
		reserveIn, reserveOut, ok := pool.ReservesFor(token)
		if !ok || reserveIn <= 0 || reserveOut <= 0 {
			continue
		}
		mid := exchange.MidPrice(reserveIn, reserveOut)

		var price float64
		switch {
		case quote != (common.Address{}):
			if counter.Address != quote {
				continue
			}
			price = mid
		case c.isStable(counter.Address):
			price = mid
		case counter.Address == c.cfg.WrappedNative:
			nativeUSD := c.nativeUSD(ctx)
			if nativeUSD <= 0 {
				continue
			}
			price = mid * nativeUSD
		default:
			continue
		}

		weight := pool.LiquidityUSD
		if weight <= 0 {
			weight = 1
		}
		weightedSum += price * weight
		totalWeight += weight
		totalLiq += pool.LiquidityUSD
		count++
	}

	if count == 0 || totalWeight <= 0 {
		return nil, nil
	}

	sample := domain.PriceSample{
		Token:        token,
		Quote:        quote,
		Price:        weightedSum / totalWeight,
		LiquidityUSD: totalLiq,
		PoolCount:    count,
		Confidence:   priceConfidence(count, totalLiq),
		SampledAt:    time.Now().UTC(),
	}
	c.cacheSet(ctx, domain.CacheNSPrices, cacheKey, sample, c.cfg.PriceTTL)
	return &sample, nil
}

// priceConfidence grows with contributing pool count and is capped low while
// total depth stays under $1k.
func priceConfidence(poolCount int, liquidityUSD float64) float64 {
	conf := 0.5 + 0.15*float64(poolCount)
	if conf > 0.95 {
		conf = 0.95
	}
	if liquidityUSD < 1_000 && conf > 0.5 {
		conf = 0.5
	}
	return conf
}

// GetGasPrice returns the node's suggested gas price in wei.
func (c *Client) GetGasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := c.do(ctx, "eth.gasPrice", func(ctx context.Context) error {
		var gpErr error
		gasPrice, gpErr = c.eth.SuggestGasPrice(ctx)
		return gpErr
	})
	if err != nil {
		return nil, err
	}
	return gasPrice, nil
}

// CheckContractSecurity combines a bytecode presence probe with the
// explorer's verification and first-seen data.
func (c *Client) CheckContractSecurity(ctx context.Context, token common.Address) (*domain.SecurityInfo, error) {
	var code []byte
	if err := c.do(ctx, "eth.getCode", func(ctx context.Context) error {
		var codeErr error
		code, codeErr = c.eth.CodeAt(ctx, token, nil)
		return codeErr
	}); err != nil {
		return nil, err
	}

	sec := domain.SecurityInfo{IsSafe: len(code) > 0}

	if c.explorer == nil {
		return &sec, nil
	}

	verified, err := c.explorer.IsVerified(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("chain: security check %s: %w", token.Hex(), err)
	}
	sec.IsVerified = verified

	if createdAt, err := c.explorer.FirstSeen(ctx, token); err != nil {
		c.logger.Debug("first-seen lookup failed",
			slog.String("token", token.Hex()),
			slog.String("error", err.Error()))
	} else {
		sec.CreatedAt = createdAt
	}
	return &sec, nil
}

// NeedsApproval reports whether spender's current allowance is below amount.
func (c *Client) NeedsApproval(ctx context.Context, token, owner, spender common.Address, amount float64) (bool, error) {
	info, err := c.GetTokenInfo(ctx, token)
	if err != nil {
		return false, err
	}

	ret, err := c.call(ctx, "erc20.allowance", token, packAllowance(owner, spender))
	if err != nil {
		return false, err
	}
	allowance, err := decodeUint(ret)
	if err != nil {
		return false, fmt.Errorf("chain: allowance %s: %w", token.Hex(), err)
	}

	required := exchange.ToRaw(amount, info.Decimals)
	return allowance.Cmp(required) < 0, nil
}

// nativeUSD prices the wrapped native token against the first stable with a
// live pool, picking the deepest venue.
func (c *Client) nativeUSD(ctx context.Context) float64 {
	if c.cfg.WrappedNative == (common.Address{}) || len(c.cfg.Stables) == 0 {
		return 0
	}

	cacheKey := "native:" + c.cfg.WrappedNative.Hex()
	var cached float64
	if hit := c.cacheGet(ctx, domain.CacheNSPrices, cacheKey, &cached); hit {
		return cached
	}

	var best float64
	var bestLiq float64
	for _, desc := range c.registry.All() {
		for _, stable := range c.cfg.Stables {
			pool, err := c.GetPoolInfo(ctx, c.cfg.WrappedNative, stable, desc.ID)
			if err != nil || pool == nil {
				continue
			}
			reserveIn, reserveOut, ok := pool.ReservesFor(c.cfg.WrappedNative)
			if !ok || reserveIn <= 0 {
				continue
			}
			if liq := 2 * reserveOut; liq > bestLiq {
				bestLiq = liq
				best = exchange.MidPrice(reserveIn, reserveOut)
			}
		}
	}
	if best > 0 {
		c.cacheSet(ctx, domain.CacheNSPrices, cacheKey, best, c.cfg.PriceTTL)
	}
	return best
}

// estimateLiquidityUSD values a pool from whichever side has a known USD
// anchor: a stable directly, or the wrapped native via its stable price.
// Pools with no anchored side report zero.
func (c *Client) estimateLiquidityUSD(ctx context.Context, pool domain.LiquidityPool) float64 {
	if c.isStable(pool.Token0.Address) {
		return 2 * pool.Reserve0
	}
	if c.isStable(pool.Token1.Address) {
		return 2 * pool.Reserve1
	}
	if pool.Token0.Address == c.cfg.WrappedNative {
		if usd := c.nativeUSD(ctx); usd > 0 {
			return 2 * pool.Reserve0 * usd
		}
	}
	if pool.Token1.Address == c.cfg.WrappedNative {
		if usd := c.nativeUSD(ctx); usd > 0 {
			return 2 * pool.Reserve1 * usd
		}
	}
	return 0
}

func (c *Client) isStable(addr common.Address) bool {
	for _, s := range c.cfg.Stables {
		if s == addr {
			return true
		}
	}
	return false
}

func (c *Client) cacheGet(ctx context.Context, namespace, key string, dest any) bool {
	if c.cache == nil {
		return false
	}
	hit, err := c.cache.Get(ctx, namespace, key, dest)
	if err != nil {
		c.logger.Debug("cache get failed", slog.String("namespace", namespace), slog.String("error", err.Error()))
		return false
	}
	c.rec.RecordCache(namespace, hit)
	return hit
}

func (c *Client) cacheSet(ctx context.Context, namespace, key string, value any, ttl time.Duration) {
	if c.cache == nil || ttl <= 0 {
		return
	}
	if err := c.cache.Set(ctx, namespace, key, value, ttl); err != nil {
		c.logger.Debug("cache set failed", slog.String("namespace", namespace), slog.String("error", err.Error()))
	}
}
