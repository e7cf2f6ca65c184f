package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeCaller struct {
	responses map[string][]byte
	calls     map[string]int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte), calls: make(map[string]int)}
}

func callKey(to common.Address, selector []byte) string {
	return fmt.Sprintf("%s:%x", to.Hex(), selector)
}

func (f *fakeCaller) set(to common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	m := parsed.Methods[method]
	data, err := m.Outputs.Pack(outputs...)
	if err != nil {
		panic(fmt.Sprintf("pack %s outputs: %v", method, err))
	}
	f.responses[callKey(to, m.ID)] = data
}

func (f *fakeCaller) setRaw(to common.Address, selector []byte, data []byte) {
	f.responses[callKey(to, selector)] = data
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	key := callKey(*msg.To, msg.Data[:4])
	f.calls[key]++
	resp, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func (f *fakeCaller) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeCaller) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(369), nil
}

func (f *fakeCaller) LatestBlockNumber(context.Context) (uint64, error) {
	return 0, nil
}

func (f *fakeCaller) BlockTimestamp(context.Context, uint64) (uint64, error) {
	return 0, nil
}

func (f *fakeCaller) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
