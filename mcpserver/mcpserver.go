// ABOUTME: MCP tool server exposing the board to agents: list, capture, delete, caption, frame, filter and AI edits.
// ABOUTME: Runs over stdio for local agents or mounts as a streamable HTTP handler on the web server.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/edit"
	"github.com/2389-research/snapboard/camera"
)

// Options wires the tool server to a board.
type Options struct {
	Session *board.Session
	// Camera backs board_capture; without it the tool reports the camera unavailable.
	Camera  camera.Source
	Version string
	// EditWait bounds how long card_edit waits for the result.
	EditWait time.Duration
	Logger   *slog.Logger
}

// Server is the board's MCP tool server.
type Server struct {
	opts   Options
	server *mcp.Server
}

// CardInfo is a card as agents see it.
type CardInfo struct {
	ID         string  `json:"id" jsonschema:"card id"`
	Status     string  `json:"status" jsonschema:"developing, idle or editing"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Rotation   float64 `json:"rotation"`
	Frame      string  `json:"frame"`
	Filter     string  `json:"filter,omitempty"`
	Caption    string  `json:"caption,omitempty"`
	Provenance string  `json:"provenance,omitempty"`
	Content    string  `json:"content" jsonschema:"content address of the image"`
	CreatedAt  string  `json:"created_at"`
}

func cardInfo(c core.Card) CardInfo {
	info := CardInfo{
		ID:        c.ID.String(),
		Status:    string(c.Status),
		X:         c.Position.X,
		Y:         c.Position.Y,
		Rotation:  c.Rotation,
		Frame:     string(c.Frame),
		Content:   c.Content.String(),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.Filter != nil {
		info.Filter = *c.Filter
	}
	if c.Caption != nil {
		info.Caption = *c.Caption
	}
	if c.Provenance != nil {
		info.Provenance = *c.Provenance
	}
	return info
}

// BoardOutput lists the board bottom to top.
type BoardOutput struct {
	Cards             []CardInfo `json:"cards"`
	CameraUnavailable bool       `json:"camera_unavailable"`
}

type captureInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"filter id from the catalog; empty uses the dial"`
}

type cardInput struct {
	CardID string `json:"card_id" jsonschema:"card id"`
}

type captionInput struct {
	CardID  string `json:"card_id" jsonschema:"card id"`
	Caption string `json:"caption" jsonschema:"caption text; empty clears it"`
}

type frameInput struct {
	CardID string `json:"card_id" jsonschema:"card id"`
	Frame  string `json:"frame" jsonschema:"classic, black, colorful or vintage"`
}

type filterInput struct {
	CardID string `json:"card_id" jsonschema:"card id"`
	Filter string `json:"filter" jsonschema:"filter id; empty or normal clears it"`
}

type editInput struct {
	CardID      string `json:"card_id" jsonschema:"card id"`
	Instruction string `json:"instruction,omitempty" jsonschema:"free-text edit instruction"`
	Preset      string `json:"preset,omitempty" jsonschema:"catalog edit preset key, used instead of instruction"`
}

type deleteOutput struct {
	Deleted string `json:"deleted"`
}

// New builds the tool server.
func New(opts Options) (*Server, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("Session must not be nil")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.EditWait <= 0 {
		opts.EditWait = 3 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{opts: opts}
	s.server = mcp.NewServer(&mcp.Implementation{Name: "snapboard", Version: opts.Version}, nil)
	s.register()
	return s, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.server }

// Run serves one session over t until the peer disconnects or ctx ends.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

// RunStdio serves over stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
}

func (s *Server) register() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "board_list",
		Description: "List every card on the board, bottom to top.",
	}, s.listCards)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "board_capture",
		Description: "Take a photo with the board camera and drop it on the board as a developing card.",
	}, s.capture)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_delete",
		Description: "Remove a card from the board.",
	}, s.deleteCard)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_caption",
		Description: "Set or clear a card's caption.",
	}, s.setCaption)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_frame",
		Description: "Change a card's frame style.",
	}, s.setFrame)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_filter",
		Description: "Change or clear a card's display filter.",
	}, s.setFilter)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_edit",
		Description: "Run an AI edit on an idle card and wait for the result.",
	}, s.editCard)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "catalog",
		Description: "List the filters, frames and edit presets the board offers.",
	}, s.listCatalog)
}

func parseCardID(raw string) (ulid.ULID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("invalid card id %q: %w", raw, err)
	}
	return id, nil
}

func (s *Server) current(id ulid.ULID) (*mcp.CallToolResult, CardInfo, error) {
	view, err := s.opts.Session.Card(id)
	if err != nil {
		return nil, CardInfo{}, err
	}
	return nil, cardInfo(view.Card), nil
}

func (s *Server) listCards(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, BoardOutput, error) {
	views, err := s.opts.Session.Cards()
	if err != nil {
		return nil, BoardOutput{}, err
	}
	out := BoardOutput{Cards: make([]CardInfo, 0, len(views)), CameraUnavailable: s.opts.Session.CameraUnavailable()}
	for _, v := range views {
		out.Cards = append(out.Cards, cardInfo(v.Card))
	}
	return nil, out, nil
}

func (s *Server) capture(ctx context.Context, _ *mcp.CallToolRequest, in captureInput) (*mcp.CallToolResult, CardInfo, error) {
	if s.opts.Camera == nil {
		s.opts.Session.CaptureUnavailable("no camera configured")
		return nil, CardInfo{}, fmt.Errorf("%w: no camera configured", core.ErrCaptureUnavailable)
	}
	img, err := s.opts.Camera.Capture(ctx)
	if err != nil {
		s.opts.Session.CaptureUnavailable(err.Error())
		return nil, CardInfo{}, fmt.Errorf("%w: %v", core.ErrCaptureUnavailable, err)
	}
	card, err := s.opts.Session.Capture(ctx, img, in.Filter)
	if err != nil {
		return nil, CardInfo{}, err
	}
	s.opts.Logger.Info("agent captured card", slog.String("component", "mcp"), slog.String("card_id", card.ID.String()))
	return nil, cardInfo(card), nil
}

func (s *Server) deleteCard(_ context.Context, _ *mcp.CallToolRequest, in cardInput) (*mcp.CallToolResult, deleteOutput, error) {
	id, err := parseCardID(in.CardID)
	if err != nil {
		return nil, deleteOutput{}, err
	}
	if err := s.opts.Session.Delete(id); err != nil {
		return nil, deleteOutput{}, err
	}
	return nil, deleteOutput{Deleted: id.String()}, nil
}

func (s *Server) setCaption(_ context.Context, _ *mcp.CallToolRequest, in captionInput) (*mcp.CallToolResult, CardInfo, error) {
	id, err := parseCardID(in.CardID)
	if err != nil {
		return nil, CardInfo{}, err
	}
	if err := s.opts.Session.SetCaption(id, in.Caption); err != nil {
		return nil, CardInfo{}, err
	}
	return s.current(id)
}

func (s *Server) setFrame(_ context.Context, _ *mcp.CallToolRequest, in frameInput) (*mcp.CallToolResult, CardInfo, error) {
	id, err := parseCardID(in.CardID)
	if err != nil {
		return nil, CardInfo{}, err
	}
	frame, err := core.ParseFrame(in.Frame)
	if err != nil {
		return nil, CardInfo{}, err
	}
	if err := s.opts.Session.SetFrame(id, frame); err != nil {
		return nil, CardInfo{}, err
	}
	return s.current(id)
}

func (s *Server) setFilter(_ context.Context, _ *mcp.CallToolRequest, in filterInput) (*mcp.CallToolResult, CardInfo, error) {
	id, err := parseCardID(in.CardID)
	if err != nil {
		return nil, CardInfo{}, err
	}
	if err := s.opts.Session.SetFilter(id, in.Filter); err != nil {
		return nil, CardInfo{}, err
	}
	return s.current(id)
}

// editCard blocks until the edit lands, fails, or the wait runs out. A timed
// out wait leaves the edit running on the board.
func (s *Server) editCard(ctx context.Context, _ *mcp.CallToolRequest, in editInput) (*mcp.CallToolResult, CardInfo, error) {
	id, err := parseCardID(in.CardID)
	if err != nil {
		return nil, CardInfo{}, err
	}
	if in.Instruction == "" && in.Preset == "" {
		return nil, CardInfo{}, errors.New("instruction or preset is required")
	}
	var done <-chan edit.Outcome
	if in.Preset != "" {
		done, err = s.opts.Session.RequestPreset(id, in.Preset)
	} else {
		done, err = s.opts.Session.RequestEdit(id, in.Instruction)
	}
	if err != nil {
		return nil, CardInfo{}, err
	}

	wait, cancel := context.WithTimeout(ctx, s.opts.EditWait)
	defer cancel()
	select {
	case out, ok := <-done:
		if !ok {
			return nil, CardInfo{}, errors.New("edit abandoned")
		}
		if out.Err != nil {
			return nil, CardInfo{}, fmt.Errorf("edit failed: %w", out.Err)
		}
	case <-wait.Done():
		return nil, CardInfo{}, fmt.Errorf("edit still running: %w", wait.Err())
	}
	return s.current(id)
}

func (s *Server) listCatalog(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, catalog.Catalog, error) {
	return nil, *s.opts.Session.Catalog(), nil
}
