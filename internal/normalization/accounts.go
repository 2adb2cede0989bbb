package normalization

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/solana"
)

// SPL account sizes.
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)

// ErrShortAccount is returned when account data is smaller than its layout.
var ErrShortAccount = errors.New("account data too short")

// MintAccount is a decoded SPL mint.
type MintAccount struct {
	Supply          uint64
	Decimals        int
	Initialized     bool
	MintAuthority   domain.Principal
	FreezeAuthority domain.Principal
}

// DecodeMint parses base64 SPL mint data.
// SPL Token Mint layout (82 bytes):
// - mintAuthority: COption<Pubkey> (36 bytes: 4 + 32)
// - supply: u64 (8 bytes)
// - decimals: u8 (1 byte)
// - isInitialized: bool (1 byte)
// - freezeAuthority: COption<Pubkey> (36 bytes: 4 + 32)
//
// Data shorter than the layout yields unresolved principals and ErrShortAccount.
func DecodeMint(data string) (MintAccount, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return MintAccount{}, fmt.Errorf("decode mint data: %w", err)
	}
	if len(decoded) < MintAccountSize {
		return MintAccount{}, fmt.Errorf("%w: mint %d bytes", ErrShortAccount, len(decoded))
	}

	return MintAccount{
		MintAuthority:   decodeCOptionKey(decoded[0:36]),
		Supply:          binary.LittleEndian.Uint64(decoded[36:44]),
		Decimals:        int(decoded[44]),
		Initialized:     decoded[45] == 1,
		FreezeAuthority: decodeCOptionKey(decoded[46:82]),
	}, nil
}

// decodeCOptionKey decodes a u32 LE tag followed by a 32-byte key.
// Tags other than 0 and 1 leave the principal unresolved.
func decodeCOptionKey(b []byte) domain.Principal {
	switch binary.LittleEndian.Uint32(b[0:4]) {
	case 0:
		return domain.Principal{Resolved: true}
	case 1:
		return domain.Principal{Address: base58.Encode(b[4:36]), Resolved: true}
	default:
		return domain.Principal{}
	}
}

// TokenAccount is a decoded SPL token account.
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64 // raw base units
}

// DecodeTokenAccount parses base64 SPL token account data.
// Token account layout: mint(32) | owner(32) | amount(8) | ...
func DecodeTokenAccount(data string) (TokenAccount, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return TokenAccount{}, fmt.Errorf("decode token account data: %w", err)
	}
	if len(decoded) < 72 {
		return TokenAccount{}, fmt.Errorf("%w: token account %d bytes", ErrShortAccount, len(decoded))
	}
	return TokenAccount{
		Mint:   base58.Encode(decoded[0:32]),
		Owner:  base58.Encode(decoded[32:64]),
		Amount: binary.LittleEndian.Uint64(decoded[64:72]),
	}, nil
}

// UIAmount converts a raw RPC token amount to UI units.
func UIAmount(a solana.TokenAmount) (float64, error) {
	raw, err := strconv.ParseUint(a.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", a.Amount, err)
	}
	return ScaleAmount(raw, a.Decimals), nil
}

// ScaleAmount divides raw base units by 10^decimals.
func ScaleAmount(raw uint64, decimals int) float64 {
	return float64(raw) / math.Pow(10, float64(decimals))
}

// IsAddress reports whether s is a base58 encoded 32-byte public key.
func IsAddress(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

// IsProgramDerived reports whether address is a valid 32-byte key that lies off
// the ed25519 curve. Such addresses have no private key (pool vaults, lockers).
func IsProgramDerived(address string) bool {
	b, err := base58.Decode(address)
	if err != nil || len(b) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(b)
	return err != nil
}
