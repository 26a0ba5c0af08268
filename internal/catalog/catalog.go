// Package catalog is the Catalog Store: read-only reference data (hero
// character names, weapon name mappings, contract addresses) loaded once
// from Postgres at startup and held in plain maps thereafter. Grounded on
// vm/registry.go (teacher) for the load-once-into-a-map, read-many
// pattern — the teacher registers VM module handlers this way; here the
// same shape backs a reference-data cache instead.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/medashooter/gateway/internal/storage/postgres"
)

// Character is the rendered (title, fraction, class) triple for a hero,
// whether sourced from the catalog or synthesized as a fallback.
type Character struct {
	Title    string
	Fraction string
	Class    string
}

var validClasses = map[string]bool{
	"HARVESTER":    true,
	"WARMONGER":    true,
	"DEFENDER":     true,
	"SPECIALIST":   true,
	"REVOLUTIONIST": true,
}

// Store is the in-memory read-only view over the catalog tables. Safe
// for concurrent reads; Reload swaps the underlying maps atomically
// under a mutex so in-flight readers never see a half-loaded state.
type Store struct {
	repo postgres.CatalogRepository

	mu          sync.RWMutex
	characters  map[uint64]Character
	weaponNames map[postgres.WeaponMappingKey]string
	contracts   map[string]postgres.ContractRecord
}

// New constructs a Store and performs the initial load.
func New(ctx context.Context, repo postgres.CatalogRepository) (*Store, error) {
	s := &Store{repo: repo}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads all catalog tables from Postgres and swaps them in.
// Not required by any request-path spec operation, but exposed for an
// administrative refresh call.
func (s *Store) Reload(ctx context.Context) error {
	rawChars, err := s.repo.AllCharacters(ctx)
	if err != nil {
		return fmt.Errorf("load characters: %w", err)
	}
	chars := make(map[uint64]Character, len(rawChars))
	for _, c := range rawChars {
		class := strings.ToUpper(c.Class)
		if !validClasses[class] {
			class = "SPECIALIST"
		}
		chars[c.SeasonCardID] = Character{Title: c.Title, Fraction: c.Fraction, Class: class}
	}

	weaponNames, err := s.repo.AllWeaponMappings(ctx)
	if err != nil {
		return fmt.Errorf("load weapon mappings: %w", err)
	}

	rawContracts, err := s.repo.AllContracts(ctx)
	if err != nil {
		return fmt.Errorf("load contracts: %w", err)
	}
	contracts := make(map[string]postgres.ContractRecord, len(rawContracts))
	for _, c := range rawContracts {
		if c.Active {
			contracts[c.LogicalName] = c
		}
	}

	s.mu.Lock()
	s.characters = chars
	s.weaponNames = weaponNames
	s.contracts = contracts
	s.mu.Unlock()
	return nil
}

// Character returns the rendered character view for seasonCardID,
// bcID, falling back to a deterministic synthesized entry when no
// catalog row exists, per spec.md §3/§8 property 4.
func (s *Store) Character(seasonCardID, bcID uint64) Character {
	s.mu.RLock()
	c, ok := s.characters[seasonCardID]
	s.mu.RUnlock()
	if ok {
		return c
	}
	return Character{
		Title:    fmt.Sprintf("Hero #%d", bcID),
		Fraction: "Neutral",
		Class:    "SPECIALIST",
	}
}

// WeaponName returns the catalog name for the given attribute tuple, or
// a deterministic fallback "T<tier> <Gun|Sword|Weapon> #<category>" per
// spec.md §8 property 5: weaponType 1 → Sword, 2 → Gun, else Weapon.
func (s *Store) WeaponName(tier, weaponType, subtype, category uint64) string {
	key := postgres.WeaponMappingKey{Tier: tier, Type: weaponType, Subtype: subtype, Category: category}
	s.mu.RLock()
	name, ok := s.weaponNames[key]
	s.mu.RUnlock()
	if ok {
		return name
	}
	noun := "Weapon"
	switch weaponType {
	case 1:
		noun = "Sword"
	case 2:
		noun = "Gun"
	}
	return fmt.Sprintf("T%d %s #%d", tier, noun, category)
}

// ContractAddress returns the active contract address for a logical
// name ("heroes", "weapons", "lands", "moh", "medallc"), and whether one
// is configured.
func (s *Store) ContractAddress(logicalName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[logicalName]
	if !ok {
		return "", false
	}
	return c.Address, true
}
