// Package storage provides the top-level StorageManager over the user
// database.
package storage

import (
	"fmt"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/storage/userdb"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	user   *userdb.Store
	logger *common.Logger
}

// NewManager opens the storage areas described by config.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	userStore, err := userdb.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create user store: %w", err)
	}

	logger.Info().
		Str("path", config.Storage.Path).
		Msg("Storage manager initialized")

	return &Manager{user: userStore, logger: logger}, nil
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.user.Portfolios()
}

func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.user.Ledger()
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore {
	return m.user.Snapshots()
}

func (m *Manager) Close() error {
	return m.user.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
