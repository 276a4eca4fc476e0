// Package userdb persists all per-user domain data using BadgerHold.
// Every domain object is stored as a generic JSON Document under a
// (user, subject, key) triple.
package userdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// Subjects partition a user's documents by domain type.
const (
	subjectPortfolio = "portfolio"
	subjectLedger    = "ledger"
	subjectSnapshot  = "snapshot"
)

// portfolioKey is the single live portfolio document per user.
const portfolioKey = "live"

// ledgerKeyTimeFormat is fixed-width so ledger keys sort chronologically.
const ledgerKeyTimeFormat = "20060102150405.000000000"

// Document is the generic persisted envelope.
type Document struct {
	UserID   string
	Subject  string
	Key      string
	Value    []byte
	DateTime time.Time
}

// Store implements the typed stores on top of BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens (or creates) the user database at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create userdb path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open userdb at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("UserDB opened")
	return &Store{db: db, logger: logger}, nil
}

// keySep is the composite key separator. A null byte prevents collisions
// when userID or key contain ":" characters.
const keySep = "\x00"

// compositeKey builds the storage key: user_id + \x00 + subject + \x00 + key
func compositeKey(userID, subject, key string) string {
	return userID + keySep + subject + keySep + key
}

func (s *Store) get(userID, subject, key string) (*Document, error) {
	ck := compositeKey(userID, subject, key)
	var doc Document
	if err := s.db.Get(ck, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%s '%s' for user '%s': %w", subject, key, userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s '%s': %w", subject, key, err)
	}
	return &doc, nil
}

func (s *Store) put(userID, subject, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s '%s': %w", subject, key, err)
	}
	doc := Document{
		UserID:   userID,
		Subject:  subject,
		Key:      key,
		Value:    data,
		DateTime: time.Now(),
	}
	ck := compositeKey(userID, subject, key)
	if err := s.db.Upsert(ck, &doc); err != nil {
		return fmt.Errorf("failed to put %s '%s': %w", subject, key, err)
	}
	return nil
}

func (s *Store) delete(userID, subject, key string) error {
	ck := compositeKey(userID, subject, key)
	if err := s.db.Delete(ck, Document{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete %s '%s': %w", subject, key, err)
	}
	return nil
}

func (s *Store) listBySubject(userID, subject string) ([]Document, error) {
	var all []Document
	if err := s.db.Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", subject, err)
	}
	var result []Document
	for i := range all {
		if all[i].UserID == userID && all[i].Subject == subject {
			result = append(result, all[i])
		}
	}
	return result, nil
}

// Portfolios returns the typed portfolio store.
func (s *Store) Portfolios() interfaces.PortfolioStore { return (*portfolioStore)(s) }

// Ledger returns the typed transaction log store.
func (s *Store) Ledger() interfaces.LedgerStore { return (*ledgerStore)(s) }

// Snapshots returns the typed snapshot store.
func (s *Store) Snapshots() interfaces.SnapshotStore { return (*snapshotStore)(s) }

// Close shuts down the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type portfolioStore Store

func (p *portfolioStore) Get(_ context.Context, userID string) (*models.Portfolio, error) {
	doc, err := (*Store)(p).get(userID, subjectPortfolio, portfolioKey)
	if err != nil {
		return nil, err
	}
	var portfolio models.Portfolio
	if err := json.Unmarshal(doc.Value, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio for %s: %w", userID, err)
	}
	return &portfolio, nil
}

func (p *portfolioStore) Save(_ context.Context, portfolio *models.Portfolio) error {
	return (*Store)(p).put(portfolio.UserID, subjectPortfolio, portfolioKey, portfolio)
}

func (p *portfolioStore) Delete(_ context.Context, userID string) error {
	return (*Store)(p).delete(userID, subjectPortfolio, portfolioKey)
}

type ledgerStore Store

// Append writes a transaction under a chronologically sortable key. The ID
// suffix keeps same-instant transactions distinct.
func (l *ledgerStore) Append(_ context.Context, tx *models.Transaction) error {
	key := tx.Timestamp.UTC().Format(ledgerKeyTimeFormat) + keySep + tx.ID
	return (*Store)(l).put(tx.UserID, subjectLedger, key, tx)
}

func (l *ledgerStore) List(ctx context.Context, userID string) ([]models.Transaction, error) {
	return l.ListRange(ctx, userID, time.Time{}, time.Time{})
}

func (l *ledgerStore) ListRange(_ context.Context, userID string, from, to time.Time) ([]models.Transaction, error) {
	docs, err := (*Store)(l).listBySubject(userID, subjectLedger)
	if err != nil {
		return nil, err
	}
	var result []models.Transaction
	for i := range docs {
		var tx models.Transaction
		if err := json.Unmarshal(docs[i].Value, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", docs[i].Key, err)
		}
		if !from.IsZero() && !tx.Timestamp.After(from) {
			continue
		}
		if !to.IsZero() && tx.Timestamp.After(to) {
			continue
		}
		result = append(result, tx)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

type snapshotStore Store

func (n *snapshotStore) Get(_ context.Context, userID, date string) (*models.Snapshot, error) {
	doc, err := (*Store)(n).get(userID, subjectSnapshot, date)
	if err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(doc.Value, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s/%s: %w", userID, date, err)
	}
	return &snap, nil
}

func (n *snapshotStore) Put(_ context.Context, snapshot *models.Snapshot) error {
	return (*Store)(n).put(snapshot.UserID, subjectSnapshot, snapshot.Date, snapshot)
}

func (n *snapshotStore) List(_ context.Context, userID string) ([]models.Snapshot, error) {
	docs, err := (*Store)(n).listBySubject(userID, subjectSnapshot)
	if err != nil {
		return nil, err
	}
	var result []models.Snapshot
	for i := range docs {
		var snap models.Snapshot
		if err := json.Unmarshal(docs[i].Value, &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %s: %w", docs[i].Key, err)
		}
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// Compile-time checks
var (
	_ interfaces.PortfolioStore = (*portfolioStore)(nil)
	_ interfaces.LedgerStore    = (*ledgerStore)(nil)
	_ interfaces.SnapshotStore  = (*snapshotStore)(nil)
)
