// ABOUTME: PDF contact sheet of a board: each card drawn as a polaroid at its position and tilt.
// ABOUTME: Cards are scaled to fit one landscape A4 page and painted bottom to top.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/core"
)

// Card geometry in board units.
const (
	CardWidth  = 170.0
	CardHeight = 245.0
	cardBorder = 10.0
	photoSize  = CardWidth - 2*cardBorder
)

const (
	pageWidth  = 297.0
	pageHeight = 210.0
	pageMargin = 10.0
)

// Images loads card payloads.
type Images interface {
	Image(ctx context.Context, ref core.ContentRef) (blob.Image, error)
}

// PDF writes the cards, bottom first, as a one-page contact sheet.
func PDF(ctx context.Context, w io.Writer, title string, cards []core.Card, images Images, cat *catalog.Catalog) error {
	if cat == nil {
		cat = catalog.Default()
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(cards) == 0 {
		pdf.SetFont("Helvetica", "I", 14)
		pdf.SetTextColor(120, 120, 120)
		pdf.Text(pageMargin, pageMargin+10, tr("This board is empty."))
		return output(pdf, w)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range cards {
		minX = math.Min(minX, c.Position.X)
		minY = math.Min(minY, c.Position.Y)
		maxX = math.Max(maxX, c.Position.X+CardWidth)
		maxY = math.Max(maxY, c.Position.Y+CardHeight)
	}
	scale := math.Min((pageWidth-2*pageMargin)/(maxX-minX), (pageHeight-2*pageMargin)/(maxY-minY))
	scale = math.Min(scale, 0.5)

	for i, c := range cards {
		if err := ctx.Err(); err != nil {
			return err
		}
		x := pageMargin + (c.Position.X-minX)*scale
		y := pageMargin + (c.Position.Y-minY)*scale
		cw, ch := CardWidth*scale, CardHeight*scale
		style, _ := cat.Frame(c.Frame)

		pdf.TransformBegin()
		// PDF rotation runs counter-clockwise; card rotation is clockwise.
		pdf.TransformRotate(-c.Rotation, x+cw/2, y+ch/2)

		r, g, b := hexColor(style.Paper, 255, 255, 255)
		pdf.SetFillColor(r, g, b)
		pdf.SetDrawColor(200, 200, 200)
		pdf.Rect(x, y, cw, ch, "FD")

		px, py, ps := x+cardBorder*scale, y+cardBorder*scale, photoSize*scale
		if !drawPhoto(ctx, pdf, fmt.Sprintf("card-%d", i), c, images, px, py, ps) {
			pdf.SetFillColor(60, 60, 60)
			pdf.Rect(px, py, ps, ps, "F")
		}

		if c.Caption != nil {
			r, g, b := hexColor(style.Ink, 40, 40, 40)
			pdf.SetTextColor(r, g, b)
			pdf.SetFont("Helvetica", "", math.Max(6, 28*scale))
			text := tr(*c.Caption)
			tw := pdf.GetStringWidth(text)
			pdf.Text(x+(cw-tw)/2, py+ps+(ch-ps-cardBorder*scale)/2+2, text)
		}
		pdf.TransformEnd()
	}
	return output(pdf, w)
}

func drawPhoto(ctx context.Context, pdf *gofpdf.Fpdf, name string, c core.Card, images Images, x, y, size float64) bool {
	if images == nil || c.Content.IsZero() {
		return false
	}
	img, err := images.Image(ctx, c.Content)
	if err != nil {
		return false
	}
	var kind string
	switch img.MIMEType {
	case "image/jpeg":
		kind = "JPG"
	case "image/png":
		kind = "PNG"
	case "image/gif":
		kind = "GIF"
	default:
		return false
	}
	opts := gofpdf.ImageOptions{ImageType: kind}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if pdf.Err() {
		// An undecodable image must not sink the whole sheet.
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(name, x, y, size, size, false, opts, 0, "")
	return true
}

func output(pdf *gofpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// hexColor parses "#rrggbb", falling back to the given default.
func hexColor(s string, dr, dg, db int) (int, int, int) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return dr, dg, db
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return dr, dg, db
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
