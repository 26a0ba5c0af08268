package enrichment

// HeroMetadata is the attribute block shared by the Unity and slim hero
// views.
type HeroMetadata struct {
	Sec          uint64 `json:"sec"`
	Ano          uint64 `json:"ano"`
	Inn          uint64 `json:"inn"`
	Revolution   bool   `json:"revolution"`
	SeasonCardID uint64 `json:"season_card_id"`
}

// HeroReward carries the serial-number-derived "power" stat.
type HeroReward struct {
	Power uint64 `json:"power"`
}

// HeroUnityEntry is one rendered hero in the Unity view.
type HeroUnityEntry struct {
	ID        uint64       `json:"id"`
	BcID      uint64       `json:"bc_id"`
	Title     string       `json:"title"`
	Fraction  string       `json:"fraction"`
	Owner     string       `json:"owner"`
	CardClass string       `json:"card_class"`
	Reward    HeroReward   `json:"reward"`
	Metadata  HeroMetadata `json:"metadata"`
}

// HeroUnityResponse is the envelope returned by the heroes endpoint.
type HeroUnityResponse struct {
	Results []HeroUnityEntry `json:"results"`
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
}

// HeroSlimEntry is the trimmed hero view (strictly redundant fields dropped).
type HeroSlimEntry struct {
	BcID     uint64       `json:"bc_id"`
	Metadata HeroMetadata `json:"metadata"`
}

// WeaponMetadata is the attribute block for the Unity weapon view.
type WeaponMetadata struct {
	WeaponTier    uint64 `json:"weapon_tier"`
	WeaponType    uint64 `json:"weapon_type"`
	WeaponSubtype uint64 `json:"weapon_subtype"`
	Category      uint64 `json:"category"`
	SerialNumber  uint64 `json:"serial_number"`
}

// WeaponUnityEntry is one rendered weapon in the Unity view.
type WeaponUnityEntry struct {
	ID              uint64         `json:"id"`
	BcID            uint64         `json:"bc_id"`
	OwnerAddress    string         `json:"owner_address"`
	ContractAddress string         `json:"contract_address"`
	WeaponName      string         `json:"weapon_name"`
	Security        uint64         `json:"security"`
	Anonymity       uint64         `json:"anonymity"`
	Innovation      uint64         `json:"innovation"`
	Minted          bool           `json:"minted"`
	Burned          bool           `json:"burned"`
	Metadata        WeaponMetadata `json:"metadata"`
}

// WeaponSlimEntry is the trimmed weapon view.
type WeaponSlimEntry struct {
	BcID       uint64 `json:"bc_id"`
	WeaponName string `json:"weapon_name"`
	Security   uint64 `json:"security"`
	Anonymity  uint64 `json:"anonymity"`
	Innovation uint64 `json:"innovation"`
}

// LandEntry is one rendered land-ticket tier. Balance is -1 when the
// Contract Gateway call failed, per spec.md §4.5's out-of-band error
// signal. Land entries are never written to the Persistent Token Cache;
// a successful balance lookup is held in the Contract Gateway's ERC-1155
// Hot Cache, a failed one is not cached.
type LandEntry struct {
	ID              uint64 `json:"id"`
	TokenID         uint64 `json:"token_id"`
	Name            string `json:"name"`
	Rarity          string `json:"rarity"`
	Plots           int    `json:"plots"`
	Image           string `json:"image"`
	Balance         int64  `json:"balance"`
	ContractAddress string `json:"contract_address"`
	NFTType         string `json:"nft_type"`
}

// landCatalog is the static land-ticket metadata table for the fixed id
// set {1,2,3}, per spec.md §6: 1=Common/1 plot, 2=Rare/3 plots,
// 3=Legendary/7 plots.
var landCatalog = []LandEntry{
	{ID: 1, TokenID: 1, Name: "Common Land Ticket", Rarity: "common", Plots: 1, Image: "land_1.png", NFTType: "land"},
	{ID: 2, TokenID: 2, Name: "Rare Land Ticket", Rarity: "rare", Plots: 3, Image: "land_2.png", NFTType: "land"},
	{ID: 3, TokenID: 3, Name: "Legendary Land Ticket", Rarity: "legendary", Plots: 7, Image: "land_3.png", NFTType: "land"},
}

// EnhancedBoosts holds the derived gameplay boosts for the enhanced
// player-data view.
type EnhancedBoosts struct {
	DamageMultiplier float64 `json:"damage_multiplier"`
	FireRateBonus    float64 `json:"fire_rate_bonus"`
	ScoreMultiplier  float64 `json:"score_multiplier"`
	HealthBonus      float64 `json:"health_bonus"`
	TotalPower       uint64  `json:"total_power"`
}

// NFTBoostSnapshot is the point-in-time record of a wallet's NFT-derived
// gameplay boosts, stored alongside a score submission for offline
// analytics (spec.md §3's "snapshot of NFT boosts"). It mirrors the same
// derivation as EnhancedBoosts plus the raw NFT counts it was computed
// from, so a later audit doesn't need to reconstruct counts from the
// boost values.
type NFTBoostSnapshot struct {
	HeroNFTs           int     `json:"hero_nfts"`
	WeaponNFTs         int     `json:"weapon_nfts"`
	LandNFTs           int     `json:"land_nfts"`
	TotalNFTs          int     `json:"total_nfts"`
	DamageMultiplier   float64 `json:"damage_multiplier"`
	FireRateBonus      float64 `json:"fire_rate_bonus"`
	ScoreMultiplier    float64 `json:"score_multiplier"`
	HealthBonus        float64 `json:"health_bonus"`
	BlockchainVerified bool    `json:"blockchain_verified"`
}

// EnhancedPlayerData combines hero, weapon and land views with derived
// boosts, per spec.md §4.5.
type EnhancedPlayerData struct {
	Heroes     []HeroSlimEntry   `json:"heroes"`
	Weapons    []WeaponSlimEntry `json:"weapons"`
	Lands      []LandEntry       `json:"lands"`
	HeroCount  int               `json:"hero_count"`
	WeaponCount int              `json:"weapon_count"`
	LandTickets int              `json:"land_tickets"`
	Boosts     EnhancedBoosts    `json:"boosts"`
}
