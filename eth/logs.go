package eth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const WordSize = 32

// Word positions inside a transfer log's data. This layout (timestamp first,
// amount second, addresses in topics 1 and 2) has not been checked against the
// deployed contract's ABI.
const (
	transferTimestampWord = 0
	transferAmountWord    = 1
	transferDataWords     = 2
)

// EventTopic returns the topic hash of an event signature such as
// "Transfer(address,address,uint256)".
func EventTopic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// ReadWord returns the index-th 32-byte word of data.
func ReadWord(data []byte, index int) ([WordSize]byte, error) {
	var word [WordSize]byte
	start := index * WordSize
	if index < 0 || start+WordSize > len(data) {
		return word, &ParseError{
			Field: "log data",
			Err:   fmt.Errorf("word %d out of range for %d bytes", index, len(data)),
		}
	}
	copy(word[:], data[start:start+WordSize])
	return word, nil
}

// ReadUint returns the index-th word of data as an unsigned integer.
func ReadUint(data []byte, index int) (*uint256.Int, error) {
	word, err := ReadWord(data, index)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes32(word[:]), nil
}

// TopicAddress returns the address held in the low 20 bytes of a topic.
func TopicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic[WordSize-common.AddressLength:])
}

// LogDecoder turns PBM transfer logs into TransferRecords.
type LogDecoder struct {
	node      Node
	contract  common.Address
	topic     common.Hash
	fromBlock string
}

func NewLogDecoder(node Node, contract common.Address, topic common.Hash) *LogDecoder {
	return &LogDecoder{node: node, contract: contract, topic: topic}
}

// WithFromBlock sets the fromBlock tag or quantity used in log queries.
func (d *LogDecoder) WithFromBlock(block string) *LogDecoder {
	d.fromBlock = block
	return d
}

// Filter builds the eth_getLogs filter for transfers where address is on the
// given side.
func (d *LogDecoder) Filter(address common.Address, dir Direction) (LogFilter, error) {
	indexed := common.BytesToHash(common.LeftPadBytes(address.Bytes(), WordSize))
	topic := d.topic
	filter := LogFilter{Address: d.contract, FromBlock: d.fromBlock}
	switch dir {
	case DirectionFrom:
		filter.Topics = []*common.Hash{&topic, &indexed}
	case DirectionTo:
		filter.Topics = []*common.Hash{&topic, nil, &indexed}
	default:
		return LogFilter{}, &ConfigError{Key: "direction", Reason: "must be from or to"}
	}
	return filter, nil
}

// DecodeTransfers fetches and decodes the transfers of address on the given
// side, in node order.
//
// Entries that cannot be decoded (data shorter than two words, fewer than
// three topics) are skipped. In that case the records decoded so far are
// returned together with a non-nil error joining one *ParseError per skipped
// entry. Any RPC failure aborts the whole batch and returns no records.
func (d *LogDecoder) DecodeTransfers(ctx context.Context, address common.Address, dir Direction) ([]TransferRecord, error) {
	filter, err := d.Filter(address, dir)
	if err != nil {
		return nil, err
	}
	logs, err := d.node.GetLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}

	records := make([]TransferRecord, 0, len(logs))
	var skipped []error
	for i, entry := range logs {
		record, err := decodeTransfer(entry)
		if err != nil {
			log.Warn("Skipping undecodable transfer log", "index", i, "tx", entry.TransactionHash.Hex(), "error", err)
			skipped = append(skipped, fmt.Errorf("log %d (%s): %w", i, entry.TransactionHash.Hex(), err))
			continue
		}
		detail, err := d.node.GetTransactionByHash(ctx, entry.TransactionHash)
		if err != nil {
			return nil, fmt.Errorf("failed to get transaction %s: %w", entry.TransactionHash.Hex(), err)
		}
		record.TransactionDetail = detail
		records = append(records, record)
	}

	log.Info("Decoded transfer logs", "address", address.Hex(), "direction", dir, "logs", len(logs), "records", len(records))
	return records, errors.Join(skipped...)
}

func decodeTransfer(entry LogEntry) (TransferRecord, error) {
	if len(entry.Topics) < 3 {
		return TransferRecord{}, &ParseError{
			Field: "log topics",
			Err:   fmt.Errorf("expected 3 topics, got %d", len(entry.Topics)),
		}
	}
	if len(entry.Data) < transferDataWords*WordSize {
		return TransferRecord{}, &ParseError{
			Field: "log data",
			Err:   fmt.Errorf("expected %d words, got %d bytes", transferDataWords, len(entry.Data)),
		}
	}
	timestamp, err := ReadUint(entry.Data, transferTimestampWord)
	if err != nil {
		return TransferRecord{}, err
	}
	amount, err := ReadUint(entry.Data, transferAmountWord)
	if err != nil {
		return TransferRecord{}, err
	}
	return TransferRecord{
		Timestamp: timestamp,
		From:      TopicAddress(entry.Topics[1]),
		To:        TopicAddress(entry.Topics[2]),
		Amount:    amount,
	}, nil
}
