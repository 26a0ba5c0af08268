package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medashooter/gateway/internal/catalog"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

type fakeCatalogRepo struct {
	characters     []postgres.Character
	weaponMappings map[postgres.WeaponMappingKey]string
	contracts      []postgres.ContractRecord
}

func (f *fakeCatalogRepo) AllCharacters(ctx context.Context) ([]postgres.Character, error) {
	return f.characters, nil
}
func (f *fakeCatalogRepo) AllWeaponMappings(ctx context.Context) (map[postgres.WeaponMappingKey]string, error) {
	return f.weaponMappings, nil
}
func (f *fakeCatalogRepo) AllContracts(ctx context.Context) ([]postgres.ContractRecord, error) {
	return f.contracts, nil
}

func TestCharacterJoinUsesCatalogRowWhenPresent(t *testing.T) {
	repo := &fakeCatalogRepo{
		characters: []postgres.Character{
			{SeasonCardID: 1020, Title: "Ranger", Fraction: "Solaris", Class: "specialist"},
		},
	}
	store, err := catalog.New(context.Background(), repo)
	require.NoError(t, err)

	c := store.Character(1020, 101)
	assert.Equal(t, "Ranger", c.Title)
	assert.Equal(t, "Solaris", c.Fraction)
	assert.Equal(t, "SPECIALIST", c.Class)
}

func TestCharacterFallsBackDeterministicallyWhenMissing(t *testing.T) {
	store, err := catalog.New(context.Background(), &fakeCatalogRepo{})
	require.NoError(t, err)

	c := store.Character(2031, 102)
	assert.Equal(t, "Hero #102", c.Title)
	assert.Equal(t, "Neutral", c.Fraction)
	assert.Equal(t, "SPECIALIST", c.Class)
}

func TestCharacterClampsUnknownClassToSpecialist(t *testing.T) {
	repo := &fakeCatalogRepo{
		characters: []postgres.Character{
			{SeasonCardID: 7, Title: "X", Fraction: "Y", Class: "not_a_real_class"},
		},
	}
	store, err := catalog.New(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, "SPECIALIST", store.Character(7, 1).Class)
}

func TestWeaponNameUsesMappingWhenPresent(t *testing.T) {
	repo := &fakeCatalogRepo{
		weaponMappings: map[postgres.WeaponMappingKey]string{
			{Tier: 1, Type: 2, Subtype: 1, Category: 3}: "Blaster",
		},
	}
	store, err := catalog.New(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, "Blaster", store.WeaponName(1, 2, 1, 3))
}

func TestWeaponNameFallsBackByType(t *testing.T) {
	store, err := catalog.New(context.Background(), &fakeCatalogRepo{})
	require.NoError(t, err)

	assert.Equal(t, "T1 Sword #3", store.WeaponName(1, 1, 9, 3))
	assert.Equal(t, "T1 Gun #3", store.WeaponName(1, 2, 9, 3))
	assert.Equal(t, "T1 Weapon #3", store.WeaponName(1, 5, 9, 3))
}

func TestContractAddressIgnoresInactiveRows(t *testing.T) {
	repo := &fakeCatalogRepo{
		contracts: []postgres.ContractRecord{
			{LogicalName: "heroes", Address: "0xabc", Kind: "erc721_enumerable", Active: true},
			{LogicalName: "weapons", Address: "0xdef", Kind: "erc721_enumerable", Active: false},
		},
	}
	store, err := catalog.New(context.Background(), repo)
	require.NoError(t, err)

	addr, ok := store.ContractAddress("heroes")
	assert.True(t, ok)
	assert.Equal(t, "0xabc", addr)

	_, ok = store.ContractAddress("weapons")
	assert.False(t, ok)
}
