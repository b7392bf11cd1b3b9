package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// ArchivedRound is the document stored for each resolved round.
type ArchivedRound struct {
	Chain      string            `json:"chain"`
	Round      domain.Round      `json:"round"`
	Report     domain.TickReport `json:"report"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// RoundArchiver writes one JSON document per resolved round under
// <prefix>/<chain>/<round_id>.json.
type RoundArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string
	now    func() time.Time
}

// NewRoundArchiver creates a RoundArchiver. reader may be nil when only
// writes are needed.
func NewRoundArchiver(writer domain.BlobWriter, reader domain.BlobReader, prefix string) *RoundArchiver {
	return &RoundArchiver{writer: writer, reader: reader, prefix: prefix, now: time.Now}
}

// RoundPath returns the object key of a round's archive document.
func RoundPath(prefix, chain string, roundID uint64) string {
	return path.Join(prefix, chain, strconv.FormatUint(roundID, 10)+".json")
}

// ArchiveRound uploads the round snapshot. Resolved rounds never change, so
// an existing document is left as is.
func (a *RoundArchiver) ArchiveRound(ctx context.Context, round domain.Round, report domain.TickReport) error {
	key := RoundPath(a.prefix, report.Chain, round.ID)
	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	doc := ArchivedRound{
		Chain:      report.Chain,
		Round:      round,
		Report:     report,
		ArchivedAt: a.now().UTC(),
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal round %d: %w", round.ID, err)
	}
	return a.writer.Put(ctx, key, bytes.NewReader(body), "application/json")
}

// Fetch reads an archived round back. A missing archive is domain.ErrNotFound.
func (a *RoundArchiver) Fetch(ctx context.Context, chain string, roundID uint64) (ArchivedRound, error) {
	if a.reader == nil {
		return ArchivedRound{}, fmt.Errorf("s3blob: archiver has no reader")
	}
	rc, err := a.reader.Get(ctx, RoundPath(a.prefix, chain, roundID))
	if err != nil {
		return ArchivedRound{}, err
	}
	defer rc.Close()

	var doc ArchivedRound
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return ArchivedRound{}, fmt.Errorf("s3blob: decode round %d: %w", roundID, err)
	}
	return doc, nil
}

var _ domain.RoundArchiver = (*RoundArchiver)(nil)
