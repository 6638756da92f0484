package localnet

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"PLedger/module/account"
	"PLedger/tools/errs"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps accounts as hashes and committed transactions as JSON
// strings under a common key prefix.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pledger"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) accountKey(addr account.Address) string {
	return s.prefix + ":acct:" + addr.String()
}

func (s *RedisStore) txnKey(hash string) string { return s.prefix + ":txn:" + hash }

func (s *RedisStore) versionKey() string { return s.prefix + ":version" }

func (s *RedisStore) GetAccount(ctx context.Context, addr account.Address) (AccountState, bool, error) {
	m, err := s.rdb.HGetAll(ctx, s.accountKey(addr)).Result()
	if err != nil {
		return AccountState{}, false, errs.ErrLedgerUnavailable.WrapErr(err, "redis hgetall", "address", addr)
	}
	if len(m) == 0 {
		return AccountState{}, false, nil
	}
	st := AccountState{Address: addr}
	if st.SequenceNumber, err = strconv.ParseUint(m["seq"], 10, 64); err != nil {
		return st, false, errs.ErrInternal.WrapMsg("corrupt account seq", "address", addr)
	}
	if st.Balance, err = strconv.ParseUint(m["balance"], 10, 64); err != nil {
		return st, false, errs.ErrInternal.WrapMsg("corrupt account balance", "address", addr)
	}
	if st.AuthKey, err = account.ParseAddress(m["auth_key"]); err != nil {
		return st, false, errs.ErrInternal.WrapMsg("corrupt account auth key", "address", addr)
	}
	return st, true, nil
}

func (s *RedisStore) PutAccount(ctx context.Context, st AccountState) error {
	err := s.rdb.HSet(ctx, s.accountKey(st.Address), map[string]any{
		"seq":      strconv.FormatUint(st.SequenceNumber, 10),
		"balance":  strconv.FormatUint(st.Balance, 10),
		"auth_key": st.AuthKey.String(),
	}).Err()
	if err != nil {
		return errs.ErrLedgerUnavailable.WrapErr(err, "redis hset", "address", st.Address)
	}
	return nil
}

func (s *RedisStore) GetTxn(ctx context.Context, hash string) (TxnRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, s.txnKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return TxnRecord{}, false, nil
	}
	if err != nil {
		return TxnRecord{}, false, errs.ErrLedgerUnavailable.WrapErr(err, "redis get", "hash", hash)
	}
	var rec TxnRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return TxnRecord{}, false, errs.ErrInternal.WrapMsg("corrupt transaction record", "hash", hash)
	}
	return rec, true, nil
}

func (s *RedisStore) PutTxn(ctx context.Context, rec TxnRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(err)
	}
	if err := s.rdb.Set(ctx, s.txnKey(rec.Hash), raw, 0).Err(); err != nil {
		return errs.ErrLedgerUnavailable.WrapErr(err, "redis set", "hash", rec.Hash)
	}
	return nil
}

func (s *RedisStore) NextVersion(ctx context.Context) (uint64, error) {
	v, err := s.rdb.Incr(ctx, s.versionKey()).Uint64()
	if err != nil {
		return 0, errs.ErrLedgerUnavailable.WrapErr(err, "redis incr version")
	}
	return v, nil
}

func (s *RedisStore) Version(ctx context.Context) (uint64, error) {
	v, err := s.rdb.Get(ctx, s.versionKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errs.ErrLedgerUnavailable.WrapErr(err, "redis get version")
	}
	return v, nil
}

func (s *RedisStore) Close() error { return nil }
