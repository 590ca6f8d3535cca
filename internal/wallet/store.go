package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps wallets in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets []Wallet
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(w)
}

func (s *MemoryStore) insertLocked(w Wallet) error {
	w.Address = strings.ToLower(w.Address)
	for _, existing := range s.wallets {
		if existing.Name == w.Name || existing.Address == w.Address {
			return ErrDuplicateWallet
		}
	}
	s.wallets = append(s.wallets, w)
	return nil
}

func (s *MemoryStore) ByName(_ context.Context, name string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.Name == name {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

func (s *MemoryStore) ByAddress(_ context.Context, address string) (Wallet, error) {
	address = strings.ToLower(address)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.Address == address {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

func (s *MemoryStore) List(context.Context) ([]Wallet, error) {
	s.mu.RLock()
	out := append([]Wallet(nil), s.wallets...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DefaultFileName is the wallet file created under the data directory.
const DefaultFileName = "wallets.json"

// FileStore persists wallets as a JSON document. Writes go through a
// temporary file and rename.
type FileStore struct {
	MemoryStore
	path string
}

type fileDocument struct {
	Wallets []Wallet `json:"wallets"`
}

// NewFileStore loads path if it exists.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("wallet file path is required")
	}
	s := &FileStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("读取钱包文件失败: %w", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析钱包文件失败: %w", err)
	}
	s.wallets = doc.Wallets
	return s, nil
}

func (s *FileStore) Create(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertLocked(w); err != nil {
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.wallets = s.wallets[:len(s.wallets)-1]
		return err
	}
	return nil
}

func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(fileDocument{Wallets: s.wallets}, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化钱包失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("创建钱包目录失败: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("写入钱包文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("替换钱包文件失败: %w", err)
	}
	return nil
}
