package blockstore

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"

	"github.com/settletrack/settletrack/pkg/tracker"
)

const (
	flagValid byte = 1 << iota
	flagSuccessful
)

// TransactionRecord is the stored verdict for a single transaction within a block.
type TransactionRecord struct {
	ID         tracker.TransactionID
	Valid      bool
	Successful bool
}

// BlockData is the stored body of a block: its transactions in inclusion order together
// with their verdicts.
type BlockData struct {
	Transactions []*TransactionRecord
}

func (b *BlockData) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	if err := stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint32, func() (int, error) {
		for _, txRecord := range b.Transactions {
			if err := stream.WriteBytesWithSize(byteBuffer, []byte(txRecord.ID), serializer.SeriLengthPrefixTypeAsUint16); err != nil {
				return 0, ierrors.Wrap(err, "failed to write transaction ID")
			}

			var flags byte
			if txRecord.Valid {
				flags |= flagValid
			}
			if txRecord.Successful {
				flags |= flagSuccessful
			}

			if err := stream.Write(byteBuffer, flags); err != nil {
				return 0, ierrors.Wrap(err, "failed to write transaction flags")
			}
		}

		return len(b.Transactions), nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "failed to write transactions")
	}

	return byteBuffer.Bytes()
}

func blockDataFromBytes(bytes []byte) (*BlockData, int, error) {
	byteReader := stream.NewByteReader(bytes)

	b := new(BlockData)

	if err := stream.ReadCollection(byteReader, serializer.SeriLengthPrefixTypeAsUint32, func(_ int) error {
		idBytes, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsUint16)
		if err != nil {
			return ierrors.Wrap(err, "failed to read transaction ID")
		}

		flags, err := stream.Read[byte](byteReader)
		if err != nil {
			return ierrors.Wrap(err, "failed to read transaction flags")
		}

		b.Transactions = append(b.Transactions, &TransactionRecord{
			ID:         tracker.TransactionID(idBytes),
			Valid:      flags&flagValid != 0,
			Successful: flags&flagSuccessful != 0,
		})

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read transactions")
	}

	return b, byteReader.BytesRead(), nil
}

func blockIDToBytes(blockID tracker.BlockID) ([]byte, error) {
	return []byte(blockID), nil
}

func blockIDFromBytes(bytes []byte) (tracker.BlockID, int, error) {
	return tracker.BlockID(bytes), len(bytes), nil
}
