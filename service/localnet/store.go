package localnet

import (
	"context"
	"sync"
	"time"

	"PLedger/module/account"
)

type AccountState struct {
	Address        account.Address `json:"address"`
	AuthKey        account.Address `json:"auth_key"`
	SequenceNumber uint64          `json:"sequence_number"`
	Balance        uint64          `json:"balance"`
}

// TxnRecord is a committed transaction.
type TxnRecord struct {
	Hash           string    `json:"hash"`
	Sender         string    `json:"sender"`
	SequenceNumber uint64    `json:"sequence_number"`
	Version        uint64    `json:"version"`
	Success        bool      `json:"success"`
	VMStatus       string    `json:"vm_status"`
	CommittedAt    time.Time `json:"committed_at"`
}

// Store persists committed ledger state. Ledger serializes all writes, so
// implementations only need to be safe for concurrent reads.
type Store interface {
	GetAccount(ctx context.Context, addr account.Address) (AccountState, bool, error)
	PutAccount(ctx context.Context, st AccountState) error
	GetTxn(ctx context.Context, hash string) (TxnRecord, bool, error)
	PutTxn(ctx context.Context, rec TxnRecord) error
	// NextVersion allocates the next ledger version, starting at 1.
	NextVersion(ctx context.Context) (uint64, error)
	Version(ctx context.Context) (uint64, error)
	Close() error
}

type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[account.Address]AccountState
	txns     map[string]TxnRecord
	version  uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[account.Address]AccountState),
		txns:     make(map[string]TxnRecord),
	}
}

func (m *MemoryStore) GetAccount(_ context.Context, addr account.Address) (AccountState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.accounts[addr]
	return st, ok, nil
}

func (m *MemoryStore) PutAccount(_ context.Context, st AccountState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[st.Address] = st
	return nil
}

func (m *MemoryStore) GetTxn(_ context.Context, hash string) (TxnRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.txns[hash]
	return rec, ok, nil
}

func (m *MemoryStore) PutTxn(_ context.Context, rec TxnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[rec.Hash] = rec
	return nil
}

func (m *MemoryStore) NextVersion(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	return m.version, nil
}

func (m *MemoryStore) Version(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, nil
}

func (m *MemoryStore) Close() error { return nil }
