package scoreintake

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/medashooter/gateway/internal/apperr"
)

// Envelope is the wire shape of POST /score: 18 base64 ciphertext strings
// (hash, address, delta, parameter1..15 — the "17-field envelope" of
// spec.md §6/§9's naming carries 15 numbered parameters plus the three
// named ones; see DESIGN.md for how this was reconciled).
type Envelope struct {
	Hash        string `json:"hash"`
	Address     string `json:"address"`
	Delta       string `json:"delta"`
	Parameter1  string `json:"parameter1"`
	Parameter2  string `json:"parameter2"`
	Parameter3  string `json:"parameter3"`
	Parameter4  string `json:"parameter4"`
	Parameter5  string `json:"parameter5"`
	Parameter6  string `json:"parameter6"`
	Parameter7  string `json:"parameter7"`
	Parameter8  string `json:"parameter8"`
	Parameter9  string `json:"parameter9"`
	Parameter10 string `json:"parameter10"`
	Parameter11 string `json:"parameter11"`
	Parameter12 string `json:"parameter12"`
	Parameter13 string `json:"parameter13"`
	Parameter14 string `json:"parameter14"`
	Parameter15 string `json:"parameter15"`
}

func (e Envelope) parameterCT() [15]string {
	return [15]string{
		e.Parameter1, e.Parameter2, e.Parameter3, e.Parameter4, e.Parameter5,
		e.Parameter6, e.Parameter7, e.Parameter8, e.Parameter9, e.Parameter10,
		e.Parameter11, e.Parameter12, e.Parameter13, e.Parameter14, e.Parameter15,
	}
}

// Decoded is the typed, decrypted record the rest of the pipeline works
// with — one field per plaintext value, no dynamic name dispatch.
type Decoded struct {
	Score                          int64
	PlayerAddress                  string
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
	MaxScorePerEnemy               int64
	MaxScorePerEnemyScaled         int64
	AbilityUseCount                int64
	EnemiesKilledWhileKillingSpree int64
}

// parameterField is one entry of the static field table replacing the
// original's dynamic field-name dispatch (spec.md §9's Redesign Flag):
// name is used only for error messages, assign writes the decrypted value
// straight into its typed destination.
type parameterField struct {
	name   string
	assign func(d *Decoded, v int64)
}

// parameterTable is the fixed-order typed mapping of spec.md §4.7 step 2
// for parameter1..15.
var parameterTable = [15]parameterField{
	{"parameter1", func(d *Decoded, v int64) { d.EnemiesSpawned = v }},
	{"parameter2", func(d *Decoded, v int64) { d.EnemiesKilled = v }},
	{"parameter3", func(d *Decoded, v int64) { d.WavesCompleted = v }},
	{"parameter4", func(d *Decoded, v int64) { d.TravelDistance = v }},
	{"parameter5", func(d *Decoded, v int64) { d.PerksCollected = v }},
	{"parameter6", func(d *Decoded, v int64) { d.CoinsCollected = v }},
	{"parameter7", func(d *Decoded, v int64) { d.ShieldsCollected = v }},
	{"parameter8", func(d *Decoded, v int64) { d.KillingSpreeMult = v }},
	{"parameter9", func(d *Decoded, v int64) { d.KillingSpreeDuration = v }},
	{"parameter10", func(d *Decoded, v int64) { d.MaxKillingSpree = v }},
	{"parameter11", func(d *Decoded, v int64) { d.AttackSpeedRaw = v; d.AttackSpeed = float64(v) / 100.0 }},
	{"parameter12", func(d *Decoded, v int64) { d.MaxScorePerEnemy = v }},
	{"parameter13", func(d *Decoded, v int64) { d.MaxScorePerEnemyScaled = v }},
	{"parameter14", func(d *Decoded, v int64) { d.AbilityUseCount = v }},
	{"parameter15", func(d *Decoded, v int64) { d.EnemiesKilledWhileKillingSpree = v }},
}

// Decrypt runs step 1 and step 2 of the Score Intake pipeline: base64
// decode + PKCS#1 v1.5 decrypt every ciphertext field, then route each
// plaintext into its typed destination per the static field table.
func Decrypt(env Envelope, keys *Keys) (Decoded, error) {
	var d Decoded

	score, err := decryptInt(keys.Score, env.Hash)
	if err != nil {
		return Decoded{}, fmt.Errorf("hash: %w", err)
	}
	d.Score = score

	addr, err := decryptAddress(keys.Score, env.Address)
	if err != nil {
		return Decoded{}, fmt.Errorf("address: %w", err)
	}
	d.PlayerAddress = addr

	delta, err := decryptInt(keys.Info, env.Delta)
	if err != nil {
		return Decoded{}, fmt.Errorf("delta: %w", err)
	}
	d.DurationSeconds = delta

	params := env.parameterCT()
	for i, field := range parameterTable {
		v, err := decryptInt(keys.Info, params[i])
		if err != nil {
			return Decoded{}, fmt.Errorf("%s: %w", field.name, err)
		}
		field.assign(&d, v)
	}
	return d, nil
}

func decryptCiphertext(key *rsa.PrivateKey, b64 string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, apperr.Wrap(apperr.MalformedSubmission, "ciphertext is not valid base64", err)
	}
	pt, err := rsa.DecryptPKCS1v15(rand.Reader, key, ct)
	if err != nil {
		return nil, apperr.Wrap(apperr.DecryptFailure, "PKCS#1 v1.5 decryption failed", err)
	}
	return pt, nil
}

func decryptInt(key *rsa.PrivateKey, b64 string) (int64, error) {
	pt, err := decryptCiphertext(key, b64)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(pt)), 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.MalformedSubmission, "plaintext is not a signed integer", err)
	}
	return n, nil
}

func decryptAddress(key *rsa.PrivateKey, b64 string) (string, error) {
	pt, err := decryptCiphertext(key, b64)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(string(pt))), nil
}
