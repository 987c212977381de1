// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/poiesic/newsrank/storage"
)

type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens the badger store under dir, creating the directory when
// needed. With inMemory set, dir is ignored and nothing touches disk.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
			if info, err = os.Stat(dir); err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// dropPrefixes removes every key under the given prefixes.
func (b *Backend) dropPrefixes(prefixes ...[]byte) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.DropPrefix(prefixes...)
}

// splitWriter spreads writes over as many transactions as badger needs,
// committing whenever the current one is full.
type splitWriter struct {
	db      *badger.DB
	tx      *badger.Txn
	commits int
}

func (b *Backend) withSplitWriter(fn func(w *splitWriter) error) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	w := &splitWriter{db: b.db, tx: b.db.NewTransaction(true)}
	defer func() { w.tx.Discard() }()

	if err := fn(w); err != nil {
		return err
	}
	if err := w.tx.Commit(); err != nil {
		return err
	}
	if w.commits > 0 {
		b.logger.Debug("split large write", "transactions", w.commits+1)
	}
	return nil
}

func (w *splitWriter) rotate() error {
	if err := w.tx.Commit(); err != nil {
		return err
	}
	w.commits++
	w.tx = w.db.NewTransaction(true)
	return nil
}

func (w *splitWriter) Set(key, value []byte) error {
	err := w.tx.Set(key, value)
	if errors.Is(err, badger.ErrTxnTooBig) {
		if err := w.rotate(); err != nil {
			return err
		}
		return w.tx.Set(key, value)
	}
	return err
}

func (w *splitWriter) Delete(key []byte) error {
	err := w.tx.Delete(key)
	if errors.Is(err, badger.ErrTxnTooBig) {
		if err := w.rotate(); err != nil {
			return err
		}
		return w.tx.Delete(key)
	}
	return err
}

func (w *splitWriter) Get(key []byte) (*badger.Item, error) {
	return w.tx.Get(key)
}
