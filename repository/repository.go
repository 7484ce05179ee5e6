package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"

	"synapse-node/db"
	"synapse-node/models"
)

// It abstracts the ledger storage layer from the consensus logic
type BlockRepositoryInterface interface {
	PutBlock(b *models.Block) error
	GetBlock(height int64) (*models.Block, error)
	GetLatestBlock() (*models.Block, error)
}

// BlockRepository implements the BlockRepositoryInterface using LevelDB as the storage backend
type BlockRepository struct {
	db *db.LevelDB
}

// NewBlockRepository creates and returns a new BlockRepository instance
func NewBlockRepository(db *db.LevelDB) *BlockRepository {
	return &BlockRepository{db: db}
}

var blockKeyPrefix = []byte("block:")

func blockKey(height int64) []byte {
	return []byte(fmt.Sprintf("block:%016d", height))
}

var headKey = []byte("chain:head")

// PutBlock stores an accepted block and advances the chain head
func (r *BlockRepository) PutBlock(b *models.Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := r.db.Put(blockKey(b.Height), data); err != nil {
		return err
	}
	return r.db.Put(headKey, data)
}

// GetBlock retrieves an accepted block by height
func (r *BlockRepository) GetBlock(height int64) (*models.Block, error) {
	data, err := r.db.Get(blockKey(height))
	if err != nil {
		return nil, err
	}
	var b models.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PruneBlocksBefore deletes stored blocks below the given height. The chain
// head record is untouched, so GetLatestBlock keeps working after a prune.
// Returns the number of blocks removed.
func (r *BlockRepository) PruneBlocksBefore(height int64) (int, error) {
	var stale [][]byte
	iter := r.db.NewIterator()
	for iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, blockKeyPrefix) {
			continue
		}
		h, err := strconv.ParseInt(string(key[len(blockKeyPrefix):]), 10, 64)
		if err != nil {
			continue
		}
		if h < height {
			stale = append(stale, append([]byte(nil), key...))
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, err
	}

	for _, key := range stale {
		if err := r.db.Delete(key); err != nil {
			return len(stale), err
		}
	}
	return len(stale), nil
}

// GetLatestBlock returns the chain head, or nil if no block has been accepted yet
func (r *BlockRepository) GetLatestBlock() (*models.Block, error) {
	data, err := r.db.Get(headKey)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var b models.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
