package solana

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// Program instruction names. The Anchor discriminator of each is
// sha256("global:<name>")[:8].
const (
	ixInitialize            = "initialize"
	ixStartRoundManual      = "start_round_manual"
	ixResolveRoundManual    = "resolve_round_manual"
	ixCollectFees           = "collect_fees"
	ixEmergencyWithdraw     = "emergency_withdraw"
	ixEmergencyWithdrawUrim = "emergency_withdraw_urim"
	ixUpdateTreasury        = "update_treasury"
)

// instructionData encodes the discriminator for name followed by args, which
// may be int64, uint64 or solanago.PublicKey.
func instructionData(name string, args ...any) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	disc := instructionDiscriminator(name)
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, err
	}
	for _, a := range args {
		var err error
		switch v := a.(type) {
		case int64:
			err = enc.WriteInt64(v, binary.LittleEndian)
		case uint64:
			err = enc.WriteUint64(v, binary.LittleEndian)
		case solanago.PublicKey:
			err = enc.WriteBytes(v[:], false)
		default:
			err = fmt.Errorf("unsupported argument type %T", a)
		}
		if err != nil {
			return nil, fmt.Errorf("solana: encode %s: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func newInstruction(programID solanago.PublicKey, name string, accounts solanago.AccountMetaSlice, args ...any) (solanago.Instruction, error) {
	data, err := instructionData(name, args...)
	if err != nil {
		return nil, err
	}
	return solanago.NewInstruction(programID, accounts, data), nil
}

func (p Program) initializeIx(authority, treasury solanago.PublicKey) (solanago.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}
	return newInstruction(p.ID, ixInitialize, solanago.AccountMetaSlice{
		solanago.NewAccountMeta(config, true, false),
		solanago.NewAccountMeta(p.USDCMint, false, false),
		solanago.NewAccountMeta(p.UrimMint, false, false),
		solanago.NewAccountMeta(authority, true, true),
		solanago.NewAccountMeta(solanago.SystemProgramID, false, false),
	}, treasury)
}

func (p Program) startRoundIx(roundID uint64, authority solanago.PublicKey, priceCents, durationSec int64) (solanago.Instruction, error) {
	a, err := p.Derive(roundID)
	if err != nil {
		return nil, err
	}
	return newInstruction(p.ID, ixStartRoundManual, solanago.AccountMetaSlice{
		solanago.NewAccountMeta(a.Config, true, false),
		solanago.NewAccountMeta(a.Round, true, false),
		solanago.NewAccountMeta(a.Vault, true, false),
		solanago.NewAccountMeta(a.UrimVault, true, false),
		solanago.NewAccountMeta(p.USDCMint, false, false),
		solanago.NewAccountMeta(p.UrimMint, false, false),
		solanago.NewAccountMeta(authority, true, true),
		solanago.NewAccountMeta(solanago.SystemProgramID, false, false),
		solanago.NewAccountMeta(solanago.TokenProgramID, false, false),
		solanago.NewAccountMeta(solanago.SysVarRentPubkey, false, false),
	}, priceCents, durationSec)
}

func (p Program) resolveRoundIx(roundID uint64, authority solanago.PublicKey, priceCents int64) (solanago.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}
	round, err := p.RoundAddress(roundID)
	if err != nil {
		return nil, err
	}
	return newInstruction(p.ID, ixResolveRoundManual, solanago.AccountMetaSlice{
		solanago.NewAccountMeta(config, false, false),
		solanago.NewAccountMeta(round, true, false),
		solanago.NewAccountMeta(authority, false, true),
	}, priceCents)
}

// withdrawIx builds collect_fees and both emergency withdrawals, which share
// one account list and differ only in the source vault.
func (p Program) withdrawIx(name string, roundID uint64, vault, destination, authority solanago.PublicKey) (solanago.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}
	round, err := p.RoundAddress(roundID)
	if err != nil {
		return nil, err
	}
	return newInstruction(p.ID, name, solanago.AccountMetaSlice{
		solanago.NewAccountMeta(config, false, false),
		solanago.NewAccountMeta(round, true, false),
		solanago.NewAccountMeta(vault, true, false),
		solanago.NewAccountMeta(destination, true, false),
		solanago.NewAccountMeta(authority, false, true),
		solanago.NewAccountMeta(solanago.TokenProgramID, false, false),
	})
}

func (p Program) collectFeesIx(roundID uint64, destination, authority solanago.PublicKey) (solanago.Instruction, error) {
	vault, err := p.VaultAddress(roundID)
	if err != nil {
		return nil, err
	}
	return p.withdrawIx(ixCollectFees, roundID, vault, destination, authority)
}

func (p Program) emergencyWithdrawIx(roundID uint64, urim bool, destination, authority solanago.PublicKey) (solanago.Instruction, error) {
	if urim {
		vault, err := p.UrimVaultAddress(roundID)
		if err != nil {
			return nil, err
		}
		return p.withdrawIx(ixEmergencyWithdrawUrim, roundID, vault, destination, authority)
	}
	vault, err := p.VaultAddress(roundID)
	if err != nil {
		return nil, err
	}
	return p.withdrawIx(ixEmergencyWithdraw, roundID, vault, destination, authority)
}

func (p Program) updateTreasuryIx(authority, treasury solanago.PublicKey) (solanago.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}
	return newInstruction(p.ID, ixUpdateTreasury, solanago.AccountMetaSlice{
		solanago.NewAccountMeta(config, true, false),
		solanago.NewAccountMeta(authority, false, true),
	}, treasury)
}
