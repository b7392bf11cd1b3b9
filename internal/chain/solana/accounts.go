package solana

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

var (
	globalConfigDiscriminator = accountDiscriminator("GlobalConfig")
	roundDiscriminator        = accountDiscriminator("Round")
)

// GlobalConfig account layout, after the discriminator:
//
//	authority pubkey, treasury pubkey, usdc_mint pubkey, urim_mint pubkey,
//	current_round_id u64, paused bool, bump u8
func decodeGlobalConfig(data []byte) (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig
	dec, err := accountDecoder(data, globalConfigDiscriminator, "GlobalConfig")
	if err != nil {
		return cfg, err
	}

	authority, err := readPubkey(dec)
	if err != nil {
		return cfg, fmt.Errorf("solana: decode config authority: %w", err)
	}
	treasury, err := readPubkey(dec)
	if err != nil {
		return cfg, fmt.Errorf("solana: decode config treasury: %w", err)
	}
	// Mints are configured locally; skip them.
	if _, err := dec.ReadNBytes(64); err != nil {
		return cfg, fmt.Errorf("solana: decode config mints: %w", err)
	}
	counter, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return cfg, fmt.Errorf("solana: decode config round counter: %w", err)
	}
	paused, err := dec.ReadBool()
	if err != nil {
		return cfg, fmt.Errorf("solana: decode config paused: %w", err)
	}

	cfg.Authority = authority.String()
	cfg.Treasury = treasury.String()
	cfg.CurrentRoundID = counter
	cfg.Paused = paused
	return cfg, nil
}

// Round account layout, after the discriminator:
//
//	round_id u64, start_time i64, end_time i64, locked_price i64,
//	final_price i64, resolved bool, outcome Option<enum{Up,Down,Draw}>,
//	up_pool u64, down_pool u64, up_pool_urim u64, down_pool_urim u64,
//	total_fees u64, fees_collected bool, bump u8
func decodeRound(data []byte) (domain.Round, error) {
	var r domain.Round
	dec, err := accountDecoder(data, roundDiscriminator, "Round")
	if err != nil {
		return r, err
	}

	fail := func(field string, err error) (domain.Round, error) {
		return domain.Round{}, fmt.Errorf("solana: decode round %s: %w", field, err)
	}

	if r.ID, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return fail("id", err)
	}
	start, err := dec.ReadInt64(binary.LittleEndian)
	if err != nil {
		return fail("start_time", err)
	}
	end, err := dec.ReadInt64(binary.LittleEndian)
	if err != nil {
		return fail("end_time", err)
	}
	if r.LockedPrice, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return fail("locked_price", err)
	}
	if r.FinalPrice, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return fail("final_price", err)
	}
	if r.Resolved, err = dec.ReadBool(); err != nil {
		return fail("resolved", err)
	}
	if r.Outcome, err = readOutcome(dec); err != nil {
		return fail("outcome", err)
	}
	for _, f := range []struct {
		name string
		dst  *uint64
	}{
		{"up_pool", &r.UpPool},
		{"down_pool", &r.DownPool},
		{"up_pool_urim", &r.UpPoolUrim},
		{"down_pool_urim", &r.DownPoolUrim},
		{"total_fees", &r.TotalFees},
	} {
		if *f.dst, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return fail(f.name, err)
		}
	}
	if r.FeesCollected, err = dec.ReadBool(); err != nil {
		return fail("fees_collected", err)
	}

	r.StartTime = time.Unix(start, 0).UTC()
	r.EndTime = time.Unix(end, 0).UTC()
	return r, nil
}

func accountDecoder(data []byte, want [8]byte, name string) (*bin.Decoder, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("solana: %s account too short (%d bytes)", name, len(data))
	}
	if !bytes.Equal(data[:8], want[:]) {
		return nil, fmt.Errorf("solana: account is not a %s", name)
	}
	return bin.NewBorshDecoder(data[8:]), nil
}

func readPubkey(dec *bin.Decoder) (solanago.PublicKey, error) {
	b, err := dec.ReadNBytes(32)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	return solanago.PublicKeyFromBytes(b), nil
}

// readOutcome decodes Option<Outcome>; None is a pending round.
func readOutcome(dec *bin.Decoder) (domain.Outcome, error) {
	some, err := dec.ReadUint8()
	if err != nil {
		return domain.OutcomePending, err
	}
	if some == 0 {
		return domain.OutcomePending, nil
	}
	variant, err := dec.ReadUint8()
	if err != nil {
		return domain.OutcomePending, err
	}
	switch variant {
	case 0:
		return domain.OutcomeUp, nil
	case 1:
		return domain.OutcomeDown, nil
	case 2:
		return domain.OutcomeDraw, nil
	default:
		return domain.OutcomePending, fmt.Errorf("unknown outcome variant %d", variant)
	}
}
