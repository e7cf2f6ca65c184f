package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultScope/internal/model"
)

// VaultCreatedDecoder decodes factory VaultCreated logs.
type VaultCreatedDecoder struct {
	event abi.Event
	topic string
}

// NewVaultCreatedDecoder builds a decoder for the factory event.
func NewVaultCreatedDecoder() (*VaultCreatedDecoder, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	event, ok := parsed.Events["VaultCreated"]
	if !ok {
		return nil, fmt.Errorf("factory abi missing VaultCreated")
	}
	return &VaultCreatedDecoder{
		event: event,
		topic: strings.ToLower(event.ID.Hex()),
	}, nil
}

// Topic0 returns the event signature hash.
func (d *VaultCreatedDecoder) Topic0() common.Hash {
	return d.event.ID
}

// CanDecode checks if the topic0 is supported.
func (d *VaultCreatedDecoder) CanDecode(topic0 string) bool {
	return topic0 != "" && strings.ToLower(topic0) == d.topic
}

// Decode converts a LogRecord into a VaultCreated event.
func (d *VaultCreatedDecoder) Decode(log model.LogRecord) (model.VaultCreated, error) {
	if len(log.Topics) == 0 {
		return model.VaultCreated{}, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return model.VaultCreated{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return model.VaultCreated{}, err
	}
	var indexed struct {
		Owner common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return model.VaultCreated{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return model.VaultCreated{}, err
	}
	if len(values) != 4 {
		return model.VaultCreated{}, fmt.Errorf("unexpected VaultCreated values: %d", len(values))
	}

	vault, err := asAddress(values[0])
	if err != nil {
		return model.VaultCreated{}, fmt.Errorf("vault: %w", err)
	}
	assetKey, ok := values[1].([32]byte)
	if !ok {
		return model.VaultCreated{}, fmt.Errorf("asset key: unsupported type %T", values[1])
	}
	threshold, err := asBigInt(values[2])
	if err != nil {
		return model.VaultCreated{}, fmt.Errorf("threshold: %w", err)
	}
	unlock, err := asBigInt(values[3])
	if err != nil {
		return model.VaultCreated{}, fmt.Errorf("unlock time: %w", err)
	}
	if !unlock.IsUint64() {
		return model.VaultCreated{}, fmt.Errorf("unlock time overflow: %s", unlock.String())
	}

	return model.VaultCreated{
		ChainID:        log.ChainID,
		BlockNumber:    log.BlockNumber,
		TxHash:         log.TxHash,
		LogIndex:       log.LogIndex,
		Factory:        log.Address,
		Owner:          indexed.Owner.Hex(),
		Vault:          vault.Hex(),
		AssetKey:       common.Hash(assetKey).Hex(),
		ThresholdFixed: threshold.String(),
		UnlockTime:     unlock.Uint64(),
		Timestamp:      log.Timestamp,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
