// Package postgres is the Postgres-backed persistence layer: the
// Persistent Token Cache, the read-only catalogs, the score tables, the
// blacklist, and the audit tables. One repository per entity family over
// a shared pgxpool.Pool, grounded on
// Bidon15-popsigner/control-plane/internal/repository.
package postgres

import "time"

// HeroTokenRow is the immutable per-bc_id hero fact row.
type HeroTokenRow struct {
	BcID         uint64
	Sec          uint64
	Ano          uint64
	Inn          uint64
	SeasonCardID uint64
	SerialNumber uint64
	LastUpdated  time.Time
	IsValid      bool
}

// CardType, SeasonID and CollectionID are derived from SeasonCardID per
// spec.md §3: card_type = season_card_id/1000, season_id =
// (season_card_id%1000)/10, card_season_collection_id = season_card_id%10.
func (h HeroTokenRow) CardType() uint64     { return h.SeasonCardID / 1000 }
func (h HeroTokenRow) SeasonID() uint64     { return (h.SeasonCardID % 1000) / 10 }
func (h HeroTokenRow) CollectionID() uint64 { return h.SeasonCardID % 10 }

// WeaponTokenRow is the immutable per-bc_id weapon fact row.
type WeaponTokenRow struct {
	BcID          uint64
	Security      uint64
	Anonymity     uint64
	Innovation    uint64
	WeaponTier    uint64
	WeaponType    uint64
	WeaponSubtype uint64
	Category      uint64
	SerialNumber  uint64
	LastUpdated   time.Time
	IsValid       bool
}

// Character is a read-only catalog row keyed by season_card_id.
type Character struct {
	SeasonCardID uint64
	Title        string
	Fraction     string
	Class        string
}

// WeaponMappingKey identifies a weapon-name catalog entry.
type WeaponMappingKey struct {
	Tier    uint64
	Type    uint64
	Subtype uint64
	Category uint64
}

// ContractRecord is the logical-name → address/kind/active mapping row.
type ContractRecord struct {
	LogicalName string
	Address     string
	Kind        string
	Active      bool
}

// CacheErrorRecord is one append-only cache_errors row.
type CacheErrorRecord struct {
	ID           string
	ContractKind string
	TokenID      *uint64
	ErrorType    string
	Message      string
	Wallet       *string
	RetryCount   int
	Resolved     bool
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// ScoreSubmissionRaw is the immutable ciphertext record.
type ScoreSubmissionRaw struct {
	ID          string
	HashCT      string
	AddressCT   string
	DeltaCT     string
	ParameterCT [15]string // parameter1..15, per spec.md §4.7's typed mapping
	RawPayload  []byte // JSON
	ReceivedAt  time.Time
}

// ScoreSubmissionProcessed is the decrypted, validated record.
type ScoreSubmissionProcessed struct {
	ID                             string
	RawID                          string
	PlayerAddress                  string
	Score                          int64
	CalculatedScore                uint32
	DurationSeconds                int64
	EnemiesSpawned                 int64
	EnemiesKilled                  int64
	WavesCompleted                 int64
	TravelDistance                 int64
	PerksCollected                 int64
	CoinsCollected                 int64
	ShieldsCollected               int64
	KillingSpreeMult               int64
	KillingSpreeDuration           int64
	MaxKillingSpree                int64
	AttackSpeedRaw                 int64
	AttackSpeed                    float64
	MaxScorePerEnemy                int64
	MaxScorePerEnemyScaled          int64
	AbilityUseCount                 int64
	EnemiesKilledWhileKillingSpree  int64
	NFTBoostSnapshot                []byte // JSON, nullable
	Validated                       bool
	ReceivedAt                      time.Time
}

// PlayerStats is the per-wallet running total row.
type PlayerStats struct {
	PlayerAddress string
	TotalGames    int64
	BestScore     int64
	FirstGameAt   *time.Time
	LastGameAt    *time.Time
}

// BlacklistEntry is an active-by-default block-list row.
type BlacklistEntry struct {
	PlayerAddress string
	Reason        string
	Evidence      []byte // JSON, nullable
	Active        bool
}
