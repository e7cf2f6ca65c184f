package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates a hex address. An empty input yields nil.
func ParseAddress(input string) (*common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if !common.IsHexAddress(input) {
		return nil, fmt.Errorf("invalid address: %s", input)
	}
	addr := common.HexToAddress(input)
	return &addr, nil
}

// eventTopics builds the topic filter for an event, optionally narrowed to one
// indexed owner.
func eventTopics(topic0 common.Hash, owner *common.Address) [][]common.Hash {
	topics := [][]common.Hash{{topic0}}
	if owner != nil {
		topics = append(topics, []common.Hash{common.BytesToHash(owner.Bytes())})
	}
	return topics
}
