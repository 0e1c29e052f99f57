// ABOUTME: Tests for the MCP tool server, driven by an SDK client over in-memory transports.
// ABOUTME: Covers listing, capture with and without a camera, card edits and AI edit waits.
package mcpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/capture"
	"github.com/2389-research/snapboard/board/edit"
	"github.com/2389-research/snapboard/camera"
	"github.com/2389-research/snapboard/mcpserver"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image-body")

type fixture struct {
	session *board.Session
	clock   *capture.ManualScheduler
	client  *mcp.ClientSession
}

func newFixture(t *testing.T, cam camera.Source, editor edit.Editor) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := capture.NewManualScheduler()
	session, err := board.New(ctx, board.Options{
		Config:    board.DefaultConfig(),
		Blobs:     blob.NewMemory(),
		Editor:    editor,
		Scheduler: clock,
		Rand:      func() float64 { return 0.5 },
	})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	t.Cleanup(session.Close)

	srv, err := mcpserver.New(mcpserver.Options{Session: session, Camera: cam, EditWait: 2 * time.Second})
	if err != nil {
		t.Fatalf("mcpserver.New: %v", err)
	}
	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := srv.MCP().Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return &fixture{session: session, clock: clock, client: cs}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := f.client.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s: %v", name, err)
	}
	if out != nil && !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		if err != nil {
			t.Fatalf("marshal structured content: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s result: %v", name, err)
		}
	}
	return res
}

func errorText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func stillCamera() camera.Source {
	return camera.SourceFunc(func(context.Context) (blob.Image, error) {
		return blob.NewImage(pngBytes, "image/png"), nil
	})
}

func TestTools_Listed(t *testing.T) {
	f := newFixture(t, nil, nil)
	res, err := f.client.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{
		"board_list": false, "board_capture": false, "card_delete": false, "card_caption": false,
		"card_frame": false, "card_filter": false, "card_edit": false, "catalog": false,
	}
	for _, tool := range res.Tools {
		want[tool.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestCapture_WithoutCamera(t *testing.T) {
	f := newFixture(t, nil, nil)
	res := f.call(t, "board_capture", map[string]any{}, nil)
	if !res.IsError {
		t.Fatal("capture without a camera should be a tool error")
	}
	if !f.session.CameraUnavailable() {
		t.Error("camera should be flagged unavailable")
	}
}

func TestCaptureThenEditCard(t *testing.T) {
	f := newFixture(t, stillCamera(), nil)

	var card mcpserver.CardInfo
	if res := f.call(t, "board_capture", map[string]any{"filter": "inkwell"}, &card); res.IsError {
		t.Fatalf("board_capture: %s", errorText(res))
	}
	if card.Status != "developing" || card.Filter != "inkwell" {
		t.Fatalf("captured = %+v", card)
	}

	var captioned mcpserver.CardInfo
	if res := f.call(t, "card_caption", map[string]any{"card_id": card.ID, "caption": "beach day"}, &captioned); res.IsError {
		t.Fatalf("card_caption: %s", errorText(res))
	}
	if captioned.Caption != "beach day" {
		t.Errorf("caption = %q", captioned.Caption)
	}

	var framed mcpserver.CardInfo
	if res := f.call(t, "card_frame", map[string]any{"card_id": card.ID, "frame": "vintage"}, &framed); res.IsError {
		t.Fatalf("card_frame: %s", errorText(res))
	}
	if framed.Frame != "vintage" {
		t.Errorf("frame = %q", framed.Frame)
	}
	if res := f.call(t, "card_frame", map[string]any{"card_id": card.ID, "frame": "neon"}, nil); !res.IsError {
		t.Error("unknown frame should be a tool error")
	}

	var listed mcpserver.BoardOutput
	f.call(t, "board_list", map[string]any{}, &listed)
	if len(listed.Cards) != 1 || listed.Cards[0].ID != card.ID {
		t.Fatalf("board = %+v", listed)
	}

	if res := f.call(t, "card_delete", map[string]any{"card_id": card.ID}, nil); res.IsError {
		t.Fatalf("card_delete: %s", errorText(res))
	}
	f.call(t, "board_list", map[string]any{}, &listed)
	if len(listed.Cards) != 0 {
		t.Errorf("board after delete = %+v", listed.Cards)
	}
}

func TestCardEdit_WaitsForResult(t *testing.T) {
	editor := edit.EditorFunc(func(_ context.Context, img blob.Image, instruction string) (blob.Image, error) {
		return blob.NewImage(append([]byte(nil), append(img.Data, []byte(instruction)...)...), img.MIMEType), nil
	})
	f := newFixture(t, stillCamera(), editor)

	var card mcpserver.CardInfo
	f.call(t, "board_capture", map[string]any{}, &card)
	if res := f.call(t, "card_edit", map[string]any{"card_id": card.ID, "instruction": "add a hat"}, nil); !res.IsError {
		t.Fatal("editing a developing card should be rejected")
	}

	f.clock.Advance(6 * time.Second)
	waitIdle(t, f, card.ID)

	var edited mcpserver.CardInfo
	if res := f.call(t, "card_edit", map[string]any{"card_id": card.ID, "instruction": "add a hat"}, &edited); res.IsError {
		t.Fatalf("card_edit: %s", errorText(res))
	}
	if edited.Status != "idle" || edited.Provenance != "add a hat" || edited.Content == card.Content {
		t.Errorf("edited = %+v", edited)
	}
}

func TestCardEdit_ReportsFailure(t *testing.T) {
	editor := edit.EditorFunc(func(context.Context, blob.Image, string) (blob.Image, error) {
		return blob.Image{}, errors.New("quota exhausted")
	})
	f := newFixture(t, stillCamera(), editor)

	var card mcpserver.CardInfo
	f.call(t, "board_capture", map[string]any{}, &card)
	f.clock.Advance(6 * time.Second)
	waitIdle(t, f, card.ID)

	res := f.call(t, "card_edit", map[string]any{"card_id": card.ID, "preset": "sketch"}, nil)
	if !res.IsError {
		t.Fatal("failed edit should be a tool error")
	}
	var after mcpserver.CardInfo
	f.call(t, "card_caption", map[string]any{"card_id": card.ID, "caption": ""}, &after)
	if after.Status != "idle" || after.Content != card.Content {
		t.Errorf("card after failed edit = %+v", after)
	}
}

func TestCardTools_UnknownCard(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, args := range []map[string]any{
		{"card_id": "not-a-ulid", "caption": "x"},
		{"card_id": "01ARZ3NDEKTSV4RRFFQ69G5FAV", "caption": "x"},
	} {
		if res := f.call(t, "card_caption", args, nil); !res.IsError {
			t.Errorf("card_caption(%v) should be a tool error", args)
		}
	}
}

func TestCatalogTool(t *testing.T) {
	f := newFixture(t, nil, nil)
	var cat struct {
		Filters []struct {
			ID string `json:"id"`
		} `json:"filters"`
		Edits []struct {
			Key string `json:"key"`
		} `json:"edits"`
	}
	if res := f.call(t, "catalog", map[string]any{}, &cat); res.IsError {
		t.Fatalf("catalog: %s", errorText(res))
	}
	if len(cat.Filters) == 0 || cat.Filters[0].ID != "normal" || len(cat.Edits) == 0 {
		t.Errorf("catalog = %+v", cat)
	}
}

func waitIdle(t *testing.T, f *fixture, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var out mcpserver.BoardOutput
		f.call(t, "board_list", map[string]any{}, &out)
		for _, c := range out.Cards {
			if c.ID == id && c.Status == "idle" {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("card %s never became idle", id)
}
