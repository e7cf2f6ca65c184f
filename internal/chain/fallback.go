package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Fallback tries each caller in order and returns the first success.
type Fallback struct {
	callers []Caller
	names   []string
	logger  *zap.Logger
}

// NewFallback builds a Fallback over callers; names label them in logs.
func NewFallback(callers []Caller, names []string, logger *zap.Logger) (*Fallback, error) {
	if len(callers) == 0 {
		return nil, fmt.Errorf("at least one rpc endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(names) != len(callers) {
		names = make([]string, len(callers))
		for i := range names {
			names[i] = fmt.Sprintf("rpc-%d", i)
		}
	}
	return &Fallback{callers: callers, names: names, logger: logger}, nil
}

// Dial connects to every URL. Endpoints that fail to dial are skipped as long as
// at least one succeeds.
func Dial(ctx context.Context, urls []string, logger *zap.Logger) (*Fallback, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clients := make([]*Client, 0, len(urls))
	callers := make([]Caller, 0, len(urls))
	names := make([]string, 0, len(urls))
	for _, url := range urls {
		client, err := NewClient(ctx, url)
		if err != nil {
			logger.Warn("rpc dial failed", zap.String("rpc", url), zap.Error(err))
			continue
		}
		clients = append(clients, client)
		callers = append(callers, client)
		names = append(names, url)
	}

	closeAll := func() {
		for _, client := range clients {
			client.Close()
		}
	}

	fb, err := NewFallback(callers, names, logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return fb, closeAll, nil
}

func (f *Fallback) do(ctx context.Context, op string, fn func(Caller) error) error {
	var errs []error
	for i, caller := range f.callers {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(caller)
		if err == nil {
			return nil
		}
		f.logger.Debug("rpc call failed", zap.String("op", op), zap.String("rpc", f.names[i]), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
	}
	return fmt.Errorf("%s: %w", op, errors.Join(errs...))
}

func (f *Fallback) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := f.do(ctx, "eth_call", func(c Caller) error {
		var err error
		out, err = c.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

func (f *Fallback) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	var out *big.Int
	err := f.do(ctx, "eth_getBalance", func(c Caller) error {
		var err error
		out, err = c.BalanceAt(ctx, account, blockNumber)
		return err
	})
	return out, err
}

func (f *Fallback) ChainID(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := f.do(ctx, "eth_chainId", func(c Caller) error {
		var err error
		out, err = c.ChainID(ctx)
		return err
	})
	return out, err
}

func (f *Fallback) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := f.do(ctx, "eth_blockNumber", func(c Caller) error {
		var err error
		out, err = c.LatestBlockNumber(ctx)
		return err
	})
	return out, err
}

func (f *Fallback) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var out uint64
	err := f.do(ctx, "eth_getBlockByNumber", func(c Caller) error {
		var err error
		out, err = c.BlockTimestamp(ctx, number)
		return err
	})
	return out, err
}

func (f *Fallback) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log
	err := f.do(ctx, "eth_getLogs", func(c Caller) error {
		var err error
		out, err = c.FilterLogs(ctx, query)
		return err
	})
	return out, err
}
