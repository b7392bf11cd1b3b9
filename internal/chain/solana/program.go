// Package solana is the keeper's backend for the Anchor round program: it
// derives program addresses, decodes accounts, and builds, signs and confirms
// one-instruction transactions.
package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// PDA seed tags.
const (
	seedConfig    = "config"
	seedRound     = "round"
	seedVault     = "vault"
	seedUrimVault = "urim_vault"
)

// Program identifies the deployed program and the mints it settles in.
type Program struct {
	ID       solanago.PublicKey
	USDCMint solanago.PublicKey
	UrimMint solanago.PublicKey
}

// Addresses are the derived accounts of one round.
type Addresses struct {
	Config    solanago.PublicKey
	Round     solanago.PublicKey
	Vault     solanago.PublicKey
	UrimVault solanago.PublicKey
}

// roundSeed returns the 8-byte little-endian encoding of a round id.
func roundSeed(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}

func (p Program) find(seeds ...[]byte) (solanago.PublicKey, error) {
	addr, _, err := solanago.FindProgramAddress(seeds, p.ID)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("solana: derive %q: %w", seeds[0], err)
	}
	return addr, nil
}

// ConfigAddress derives the global config account.
func (p Program) ConfigAddress() (solanago.PublicKey, error) {
	return p.find([]byte(seedConfig))
}

// RoundAddress derives the round account for id.
func (p Program) RoundAddress(id uint64) (solanago.PublicKey, error) {
	return p.find([]byte(seedRound), roundSeed(id))
}

// VaultAddress derives the USDC vault for id.
func (p Program) VaultAddress(id uint64) (solanago.PublicKey, error) {
	return p.find([]byte(seedVault), roundSeed(id))
}

// UrimVaultAddress derives the URIM vault for id.
func (p Program) UrimVaultAddress(id uint64) (solanago.PublicKey, error) {
	return p.find([]byte(seedUrimVault), roundSeed(id))
}

// Derive returns every address of round id. It is a pure function of id and
// the program id.
func (p Program) Derive(id uint64) (Addresses, error) {
	var (
		a   Addresses
		err error
	)
	if a.Config, err = p.ConfigAddress(); err != nil {
		return a, err
	}
	if a.Round, err = p.RoundAddress(id); err != nil {
		return a, err
	}
	if a.Vault, err = p.VaultAddress(id); err != nil {
		return a, err
	}
	if a.UrimVault, err = p.UrimVaultAddress(id); err != nil {
		return a, err
	}
	return a, nil
}

// Anchor discriminators.

func instructionDiscriminator(name string) [8]byte {
	return discriminator("global:" + name)
}

func accountDiscriminator(name string) [8]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
