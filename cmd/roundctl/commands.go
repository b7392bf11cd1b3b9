package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/alanyoungcy/roundkeeper/internal/app"
	"github.com/alanyoungcy/roundkeeper/internal/chain/solana"
	"github.com/alanyoungcy/roundkeeper/internal/crypto"
	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func requireYes(yes bool, what string) error {
	if !yes {
		return fmt.Errorf("refusing to %s without -yes", what)
	}
	return nil
}

func runStatus(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags("status"), args); err != nil {
		return err
	}
	c, err := e.chain(ctx, false)
	if err != nil {
		return err
	}
	gc, err := c.GlobalConfig(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(e.out)
	table.Header("Field", "Value")
	table.Append("chain", c.Name())
	table.Append("network", e.cfg.Network)
	table.Append("program", e.cfg.ProgramAddress())
	table.Append("authority", gc.Authority)
	table.Append("treasury", gc.Treasury)
	table.Append("paused", strconv.FormatBool(gc.Paused))
	table.Append("round counter", strconv.FormatUint(gc.CurrentRoundID, 10))
	table.Render()

	id, ok := gc.ActiveRoundID()
	if !ok {
		e.printf("\nno round has been started\n")
		return nil
	}
	round, err := c.Round(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		e.printf("\nactive round %d not found\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	e.printf("\nactive round\n")
	renderRound(e.out, round, time.Now())
	return nil
}

func runRound(ctx context.Context, e *env, args []string) error {
	fs := newFlags("round")
	id := fs.Int64("id", -1, "round id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id < 0 {
		return errUsage
	}
	c, err := e.chain(ctx, false)
	if err != nil {
		return err
	}
	round, err := c.Round(ctx, uint64(*id))
	if err != nil {
		return err
	}
	renderRound(e.out, round, time.Now())
	return nil
}

func renderRound(w io.Writer, r domain.Round, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("id", strconv.FormatUint(r.ID, 10))
	table.Append("start", r.StartTime.UTC().Format(time.RFC3339))
	table.Append("end", r.EndTime.UTC().Format(time.RFC3339))
	if !r.Resolved {
		table.Append("remaining", r.Remaining(now).Truncate(time.Second).String())
	}
	table.Append("locked price", domain.FormatCents(r.LockedPrice))
	if r.Resolved {
		table.Append("final price", domain.FormatCents(r.FinalPrice))
	}
	table.Append("outcome", r.Outcome.String())
	table.Append("up pool", domain.FormatUnits(r.UpPool, domain.USDCDecimals))
	table.Append("down pool", domain.FormatUnits(r.DownPool, domain.USDCDecimals))
	table.Append("up pool (urim)", domain.FormatUnits(r.UpPoolUrim, domain.UrimDecimals))
	table.Append("down pool (urim)", domain.FormatUnits(r.DownPoolUrim, domain.UrimDecimals))
	table.Append("fees", domain.FormatUnits(r.TotalFees, domain.USDCDecimals))
	table.Append("fees collected", strconv.FormatBool(r.FeesCollected))
	table.Render()
}

func runDerive(_ context.Context, e *env, args []string) error {
	fs := newFlags("derive")
	id := fs.Int64("id", -1, "round id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id < 0 {
		return errUsage
	}
	if strings.ToLower(e.cfg.Chain) == "evm" {
		return errors.New("address derivation applies to the solana program only")
	}
	program, err := solana.ParseProgram(e.cfg.Solana.ProgramID, e.cfg.Solana.USDCMint, e.cfg.Solana.UrimMint)
	if err != nil {
		return err
	}
	addrs, err := program.Derive(uint64(*id))
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(e.out)
	table.Header("Account", "Address")
	table.Append("config", addrs.Config.String())
	table.Append("round", addrs.Round.String())
	table.Append("vault", addrs.Vault.String())
	table.Append("urim vault", addrs.UrimVault.String())
	table.Render()
	return nil
}

func runTicks(ctx context.Context, e *env, args []string) error {
	fs := newFlags("ticks")
	limit := fs.Int("limit", 20, "number of reports")
	if err := parse(fs, args); err != nil {
		return err
	}
	h, err := e.history(ctx)
	if err != nil {
		return err
	}
	if h.Ticks == nil {
		return errors.New("no history store configured (storage.driver = none)")
	}
	reports, err := h.Ticks.ListTicks(ctx, domain.ListOpts{Limit: *limit})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(e.out)
	table.Header("Started", "Decision", "Round", "Actions", "Outcome", "Error")
	for _, r := range reports {
		var kinds []string
		for _, a := range r.Actions {
			status := "ok"
			switch {
			case a.Skipped != "":
				status = "skipped"
			case !a.Success:
				status = "failed"
			}
			kinds = append(kinds, string(a.Kind)+":"+status)
		}
		table.Append(
			r.StartedAt.UTC().Format(time.RFC3339),
			string(r.Decision),
			strconv.FormatUint(r.RoundID, 10),
			strings.Join(kinds, " "),
			r.Outcome,
			r.Error,
		)
	}
	table.Render()
	return nil
}

func runArchived(ctx context.Context, e *env, args []string) error {
	fs := newFlags("archived")
	id := fs.Int64("id", -1, "round id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id < 0 {
		return errUsage
	}
	if !e.cfg.S3.Enabled {
		return errors.New("s3 archive is not enabled")
	}
	archiver, _, err := app.OpenArchive(ctx, e.cfg)
	if err != nil {
		return err
	}
	rec, err := archiver.Fetch(ctx, e.cfg.Chain, uint64(*id))
	if err != nil {
		return err
	}
	e.printf("archived %s (tick %s)\n", rec.ArchivedAt.UTC().Format(time.RFC3339), rec.Report.ID)
	renderRound(e.out, rec.Round, rec.ArchivedAt)
	return nil
}

func runInit(ctx context.Context, e *env, args []string) error {
	fs := newFlags("init")
	treasury := fs.String("treasury", "", "treasury address (defaults to solana.treasury)")
	yes := fs.Bool("yes", false, "confirm")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *treasury == "" {
		*treasury = e.cfg.Solana.Treasury
	}
	if err := requireYes(*yes, "initialize the program"); err != nil {
		return err
	}
	c, err := e.chain(ctx, true)
	if err != nil {
		return err
	}
	res, err := c.Initialize(ctx, *treasury)
	return e.finishAdmin(ctx, domain.ActionInitialize, res, err, map[string]any{"treasury": *treasury})
}

func runUpdateTreasury(ctx context.Context, e *env, args []string) error {
	fs := newFlags("update-treasury")
	address := fs.String("address", "", "new treasury address")
	yes := fs.Bool("yes", false, "confirm")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *address == "" {
		return errUsage
	}
	if err := requireYes(*yes, "change the treasury"); err != nil {
		return err
	}
	c, err := e.chain(ctx, true)
	if err != nil {
		return err
	}
	res, err := c.UpdateTreasury(ctx, *address)
	return e.finishAdmin(ctx, domain.ActionUpdateTreasury, res, err, map[string]any{"treasury": *address})
}

func runEmergencyWithdraw(ctx context.Context, e *env, args []string) error {
	fs := newFlags("emergency-withdraw")
	id := fs.Int64("id", -1, "round id")
	urim := fs.Bool("urim", false, "drain the URIM vault instead of the USDC vault")
	yes := fs.Bool("yes", false, "confirm")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id < 0 {
		return errUsage
	}
	if err := requireYes(*yes, "drain a round vault"); err != nil {
		return err
	}
	c, err := e.chain(ctx, true)
	if err != nil {
		return err
	}
	kind := domain.ActionEmergencyWithdraw
	if *urim {
		kind = domain.ActionEmergencyWithdrawUrim
	}
	res, err := c.EmergencyWithdraw(ctx, uint64(*id), *urim)
	return e.finishAdmin(ctx, kind, res, err, map[string]any{"round_id": *id})
}

// finishAdmin prints and audits the result of an administrative call.
func (e *env) finishAdmin(ctx context.Context, kind domain.ActionKind, res domain.TxResult, err error, detail map[string]any) error {
	detail["chain"] = e.cfg.Chain
	detail["tx_id"] = res.TxID
	if err != nil {
		detail["error"] = err.Error()
		e.audit(ctx, "admin."+string(kind)+".failed", detail)
		e.notify(ctx, fmt.Sprintf("%s failed", kind), err.Error())
		var txErr *domain.TxError
		if errors.As(err, &txErr) {
			for _, line := range txErr.TailLogs(10) {
				e.printf("  %s\n", line)
			}
		}
		return err
	}
	e.audit(ctx, "admin."+string(kind), detail)
	e.notify(ctx, fmt.Sprintf("%s confirmed", kind), "tx "+res.TxID)
	e.printf("%s confirmed: %s\n", kind, res.TxID)
	return nil
}

func runEncryptKey(_ context.Context, e *env, args []string) error {
	fs := newFlags("encrypt-key")
	chain := fs.String("chain", "solana", "key encoding: solana or evm")
	keyfile := fs.String("keyfile", "", "plaintext key file")
	out := fs.String("out", "", "encrypted key output path")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *keyfile == "" || *out == "" {
		return errUsage
	}
	_ = godotenv.Load()
	password := os.Getenv("KEEPER_WALLET_KEY_PASSWORD")
	if password == "" {
		return errors.New("KEEPER_WALLET_KEY_PASSWORD must be set")
	}

	parseKey := crypto.SecretParser(solana.ParseSecret)
	if strings.ToLower(*chain) == "evm" {
		parseKey = crypto.ParseHexKey
	}
	raw, err := os.ReadFile(*keyfile)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	key, err := parseKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return err
	}
	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		return fmt.Errorf("write encrypted key: %w", err)
	}
	e.printf("encrypted key written to %s\n", *out)
	return nil
}
