// ABOUTME: Parquet dataset of card metadata, one row per card in stacking order.
package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/2389-research/snapboard/board/core"
)

// CardRow is the Parquet schema of a card.
type CardRow struct {
	ID          string  `parquet:"id"`
	Z           int32   `parquet:"z"`
	Content     string  `parquet:"content"`
	Status      string  `parquet:"status"`
	Frame       string  `parquet:"frame"`
	Filter      *string `parquet:"filter,optional"`
	Caption     *string `parquet:"caption,optional"`
	Provenance  *string `parquet:"provenance,optional"`
	X           float64 `parquet:"x"`
	Y           float64 `parquet:"y"`
	Rotation    float64 `parquet:"rotation"`
	CreatedAtMS int64   `parquet:"created_at_ms"`
}

// Rows converts cards, bottom first, to dataset rows.
func Rows(cards []core.Card) []CardRow {
	rows := make([]CardRow, 0, len(cards))
	for i, c := range cards {
		rows = append(rows, CardRow{
			ID:          c.ID.String(),
			Z:           int32(i),
			Content:     c.Content.String(),
			Status:      string(c.Status),
			Frame:       string(c.Frame),
			Filter:      c.Filter,
			Caption:     c.Caption,
			Provenance:  c.Provenance,
			X:           c.Position.X,
			Y:           c.Position.Y,
			Rotation:    c.Rotation,
			CreatedAtMS: c.CreatedAt.UnixMilli(),
		})
	}
	return rows
}

// Parquet writes the cards as a Parquet file.
func Parquet(w io.Writer, cards []core.Card) error {
	if err := parquet.Write(w, Rows(cards)); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}
