package enrichment

import (
	"context"
	"encoding/json"

	"github.com/medashooter/gateway/internal/storage/postgres"
)

// HeroesUnity renders the full hero Unity view for wallet.
func (e *Engine) HeroesUnity(ctx context.Context, wallet string) (HeroUnityResponse, error) {
	rows, err := e.collectHeroRows(ctx, wallet)
	if err != nil {
		return HeroUnityResponse{}, err
	}

	results := make([]HeroUnityEntry, 0, len(rows))
	for _, r := range rows {
		results = append(results, e.renderHeroUnity(r, wallet))
	}
	return HeroUnityResponse{Results: results, Count: len(results), Next: nil}, nil
}

// HeroesSlim renders the trimmed hero view. EnhancedPlayerData builds the
// same HeroSlimEntry values inline rather than calling this method.
func (e *Engine) HeroesSlim(ctx context.Context, wallet string) ([]HeroSlimEntry, error) {
	rows, err := e.collectHeroRows(ctx, wallet)
	if err != nil {
		return nil, err
	}
	out := make([]HeroSlimEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, HeroSlimEntry{
			BcID: r.BcID,
			Metadata: HeroMetadata{
				Sec: r.Sec, Ano: r.Ano, Inn: r.Inn,
				Revolution:   r.CardType() == 2,
				SeasonCardID: r.SeasonCardID,
			},
		})
	}
	return out, nil
}

func (e *Engine) renderHeroUnity(r postgres.HeroTokenRow, wallet string) HeroUnityEntry {
	c := e.catalog.Character(r.SeasonCardID, r.BcID)
	return HeroUnityEntry{
		ID:        r.BcID,
		BcID:      r.BcID,
		Title:     c.Title,
		Fraction:  c.Fraction,
		Owner:     wallet,
		CardClass: c.Class,
		Reward:    HeroReward{Power: r.SerialNumber},
		Metadata: HeroMetadata{
			Sec: r.Sec, Ano: r.Ano, Inn: r.Inn,
			Revolution:   r.CardType() == 2,
			SeasonCardID: r.SeasonCardID,
		},
	}
}

// WeaponsUnity renders the full weapon Unity view for wallet.
func (e *Engine) WeaponsUnity(ctx context.Context, wallet string) ([]WeaponUnityEntry, error) {
	rows, err := e.collectWeaponRows(ctx, wallet)
	if err != nil {
		return nil, err
	}
	contractAddr, _ := e.catalog.ContractAddress("weapons")

	out := make([]WeaponUnityEntry, 0, len(rows))
	for _, r := range rows {
		name := e.catalog.WeaponName(r.WeaponTier, r.WeaponType, r.WeaponSubtype, r.Category)
		out = append(out, WeaponUnityEntry{
			ID: r.BcID, BcID: r.BcID, OwnerAddress: wallet, ContractAddress: contractAddr,
			WeaponName: name, Security: r.Security, Anonymity: r.Anonymity, Innovation: r.Innovation,
			Minted: true, Burned: false,
			Metadata: WeaponMetadata{
				WeaponTier: r.WeaponTier, WeaponType: r.WeaponType, WeaponSubtype: r.WeaponSubtype,
				Category: r.Category, SerialNumber: r.SerialNumber,
			},
		})
	}
	return out, nil
}

// WeaponsSlim renders the trimmed weapon view.
func (e *Engine) WeaponsSlim(ctx context.Context, wallet string) ([]WeaponSlimEntry, error) {
	rows, err := e.collectWeaponRows(ctx, wallet)
	if err != nil {
		return nil, err
	}
	out := make([]WeaponSlimEntry, 0, len(rows))
	for _, r := range rows {
		name := e.catalog.WeaponName(r.WeaponTier, r.WeaponType, r.WeaponSubtype, r.Category)
		out = append(out, WeaponSlimEntry{
			BcID: r.BcID, WeaponName: name,
			Security: r.Security, Anonymity: r.Anonymity, Innovation: r.Innovation,
		})
	}
	return out, nil
}

// EnhancedPlayerData combines hero, weapon and land views with the
// derived gameplay boosts of spec.md §4.5.
func (e *Engine) EnhancedPlayerData(ctx context.Context, wallet string) (EnhancedPlayerData, error) {
	heroRows, err := e.collectHeroRows(ctx, wallet)
	if err != nil {
		return EnhancedPlayerData{}, err
	}
	weaponRows, err := e.collectWeaponRows(ctx, wallet)
	if err != nil {
		return EnhancedPlayerData{}, err
	}
	lands, err := e.Lands(ctx, wallet)
	if err != nil {
		return EnhancedPlayerData{}, err
	}

	heroes := make([]HeroSlimEntry, 0, len(heroRows))
	var totalPower uint64
	for _, r := range heroRows {
		heroes = append(heroes, HeroSlimEntry{
			BcID: r.BcID,
			Metadata: HeroMetadata{
				Sec: r.Sec, Ano: r.Ano, Inn: r.Inn,
				Revolution:   r.CardType() == 2,
				SeasonCardID: r.SeasonCardID,
			},
		})
		totalPower += r.Sec + r.Ano + r.Inn
	}

	weapons := make([]WeaponSlimEntry, 0, len(weaponRows))
	for _, r := range weaponRows {
		name := e.catalog.WeaponName(r.WeaponTier, r.WeaponType, r.WeaponSubtype, r.Category)
		weapons = append(weapons, WeaponSlimEntry{
			BcID: r.BcID, WeaponName: name,
			Security: r.Security, Anonymity: r.Anonymity, Innovation: r.Innovation,
		})
		totalPower += r.Security + r.Anonymity + r.Innovation
	}

	var landTickets int64
	for _, l := range lands {
		if l.Balance > 0 {
			landTickets += l.Balance
		}
	}

	boosts := EnhancedBoosts{
		DamageMultiplier: minFloat(5*float64(len(heroes)), 50),
		FireRateBonus:    minFloat(3*float64(len(weapons)), 30),
		ScoreMultiplier:  minFloat(2*float64(landTickets), 20),
		HealthBonus:      25*float64(len(heroes)) + 15*float64(len(weapons)) + 10*float64(landTickets),
		TotalPower:       totalPower,
	}

	return EnhancedPlayerData{
		Heroes: heroes, Weapons: weapons, Lands: lands,
		HeroCount: len(heroes), WeaponCount: len(weapons), LandTickets: int(landTickets),
		Boosts: boosts,
	}, nil
}

// BoostSnapshotJSON computes wallet's current NFT-derived boosts and
// returns the marshaled NFTBoostSnapshot, for Score Intake to persist
// alongside a submission (spec.md §3). Satisfies scoreintake.BoostLookup.
func (e *Engine) BoostSnapshotJSON(ctx context.Context, wallet string) ([]byte, error) {
	data, err := e.EnhancedPlayerData(ctx, wallet)
	if err != nil {
		return nil, err
	}
	snapshot := NFTBoostSnapshot{
		HeroNFTs:           data.HeroCount,
		WeaponNFTs:         data.WeaponCount,
		LandNFTs:           data.LandTickets,
		TotalNFTs:          data.HeroCount + data.WeaponCount + data.LandTickets,
		DamageMultiplier:   data.Boosts.DamageMultiplier,
		FireRateBonus:      data.Boosts.FireRateBonus,
		ScoreMultiplier:    data.Boosts.ScoreMultiplier,
		HealthBonus:        data.Boosts.HealthBonus,
		BlockchainVerified: true,
	}
	return json.Marshal(snapshot)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
