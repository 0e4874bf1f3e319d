package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	kindString  = "s"
	kindInteger = "i"
)

// BadgerStore is an AttributeStore backed by BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// Open opens a store in dir. An empty dir opens an in-memory store.
func Open(dir string, logger *zap.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open attribute store")
	}

	return &BadgerStore{db: db}, nil
}

// OpenInMemory opens a store that is lost on Close.
func OpenInMemory() (*BadgerStore, error) {
	return Open("", nil)
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func attributeKey(stepID, name, kind string) []byte {
	return []byte("step/" + stepID + "/" + name + "#" + kind)
}

func (s *BadgerStore) get(stepID, name, kind string) ([]byte, bool, error) {
	var out []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attributeKey(stepID, name, kind))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "unable to read %s of step %s", name, stepID)
	}

	return out, true, nil
}

func (s *BadgerStore) set(stepID, name, kind string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(attributeKey(stepID, name, kind), value)
	})
	if err != nil {
		return errors.Wrapf(err, "unable to write %s of step %s", name, stepID)
	}

	return nil
}

func (s *BadgerStore) StepAttributeString(_ context.Context, stepID, name string) (string, bool, error) {
	v, ok, err := s.get(stepID, name, kindString)

	return string(v), ok, err
}

func (s *BadgerStore) StepAttributeInteger(_ context.Context, stepID, name string) (int64, bool, error) {
	v, ok, err := s.get(stepID, name, kindInteger)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "attribute %s of step %s is not an integer", name, stepID)
	}

	return n, true, nil
}

func (s *BadgerStore) SaveStepAttributeString(_ context.Context, stepID, name, value string) error {
	return s.set(stepID, name, kindString, []byte(value))
}

func (s *BadgerStore) SaveStepAttributeInteger(_ context.Context, stepID, name string, value int64) error {
	return s.set(stepID, name, kindInteger, []byte(strconv.FormatInt(value, 10)))
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

var _ AttributeStore = (*BadgerStore)(nil)
