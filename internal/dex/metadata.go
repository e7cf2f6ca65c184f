package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/model"
)

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// PairTokens is the immutable token0/token1 identity of a pair.
type PairTokens struct {
	Token0 common.Address
	Token1 common.Address
}

// PairTokenCache caches pair token identity; reserves are always read live.
type PairTokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]PairTokens
}

func NewPairTokenCache() *PairTokenCache {
	return &PairTokenCache{data: make(map[common.Address]PairTokens)}
}

func (c *PairTokenCache) Get(pair common.Address) (PairTokens, bool) {
	c.mu.RLock()
	tokens, ok := c.data[pair]
	c.mu.RUnlock()
	return tokens, ok
}

func (c *PairTokenCache) Set(pair common.Address, tokens PairTokens) {
	c.mu.Lock()
	c.data[pair] = tokens
	c.mu.Unlock()
}

// Call packs a method call, runs it through eth_call and unpacks the outputs.
func Call(ctx context.Context, caller chain.Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchPairTokens reads token0 and token1 of a pair, using the cache when set.
func FetchPairTokens(ctx context.Context, caller chain.Caller, pair common.Address, cache *PairTokenCache) (PairTokens, error) {
	if cache != nil {
		if tokens, ok := cache.Get(pair); ok {
			return tokens, nil
		}
	}

	parsed, err := PairABI()
	if err != nil {
		return PairTokens{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := Call(ctx, caller, pair, parsed, "token0", nil)
	if err != nil {
		return PairTokens{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return PairTokens{}, fmt.Errorf("token0: %w", err)
	}

	values, err = Call(ctx, caller, pair, parsed, "token1", nil)
	if err != nil {
		return PairTokens{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return PairTokens{}, fmt.Errorf("token1: %w", err)
	}

	tokens := PairTokens{Token0: token0, Token1: token1}
	if cache != nil {
		cache.Set(pair, tokens)
	}
	return tokens, nil
}

// FetchPairState reads token identity and current reserves of a pair.
func FetchPairState(ctx context.Context, caller chain.Caller, pair common.Address, cache *PairTokenCache) (model.PairState, error) {
	tokens, err := FetchPairTokens(ctx, caller, pair, cache)
	if err != nil {
		return model.PairState{}, err
	}

	parsed, err := PairABI()
	if err != nil {
		return model.PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := Call(ctx, caller, pair, parsed, "getReserves", nil)
	if err != nil {
		return model.PairState{}, err
	}
	if len(values) < 2 {
		return model.PairState{}, fmt.Errorf("unexpected reserves values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve1: %w", err)
	}

	return model.PairState{
		Pair:     pair.Hex(),
		Token0:   tokens.Token0.Hex(),
		Token1:   tokens.Token1.Hex(),
		Reserve0: reserve0,
		Reserve1: reserve1,
	}, nil
}

// FetchTokenMeta loads decimals and symbol via ERC20 calls. Symbol is best effort
// and falls back to the bytes32 variant some older tokens use.
func FetchTokenMeta(ctx context.Context, caller chain.Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := Call(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := Call(ctx, caller, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := Call(ctx, caller, token, bytes32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// BalanceOf returns an account's ERC20 balance.
func BalanceOf(ctx context.Context, caller chain.Caller, token, account common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := Call(ctx, caller, token, parsed, "balanceOf", nil, account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
	return v, nil
}

func asInt64(value interface{}) (int64, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("int64 overflow: %s", v.String())
	}
	return v.Int64(), nil
}
