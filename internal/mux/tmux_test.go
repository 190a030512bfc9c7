package mux

import "testing"

func TestParsePanes(t *testing.T) {
	out := `%0 @1 0 0 80 24 1
%1 @1 81 0 79 24 0
%2 @1 0 25 160 23 0
`
	panes := ParsePanes(out)
	if len(panes) != 3 {
		t.Fatalf("expected 3 panes, got %d", len(panes))
	}

	p := panes[0]
	if p.ID != "%0" || p.WindowID != "@1" {
		t.Errorf("ids: got %q %q", p.ID, p.WindowID)
	}
	if p.X != 0 || p.Y != 0 || p.Width != 80 || p.Height != 24 {
		t.Errorf("geometry: got %d,%d %dx%d", p.X, p.Y, p.Width, p.Height)
	}
	if !p.Active {
		t.Error("expected first pane active")
	}
	if panes[1].Active {
		t.Error("expected second pane inactive")
	}
	if panes[1].X != 81 {
		t.Errorf("second pane x: got %d, want 81", panes[1].X)
	}
}

func TestParsePanes_SkipsMalformed(t *testing.T) {
	out := `%0 @1 0 0 80 24 1
not enough fields
%1 @1 x y 79 24 0
%2 @1 0 25 160 23 0
`
	panes := ParsePanes(out)
	if len(panes) != 2 {
		t.Fatalf("expected 2 panes after skipping bad lines, got %d", len(panes))
	}
	if panes[0].ID != "%0" || panes[1].ID != "%2" {
		t.Errorf("kept panes: got %q %q", panes[0].ID, panes[1].ID)
	}
}

func TestParsePanes_Empty(t *testing.T) {
	if panes := ParsePanes(""); len(panes) != 0 {
		t.Errorf("expected no panes, got %d", len(panes))
	}
}

func TestParseClients(t *testing.T) {
	out := `555 $7
600 $2
`
	clients := ParseClients(out)
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].PID != 555 || clients[0].Session != "$7" {
		t.Errorf("first client: got %d %q", clients[0].PID, clients[0].Session)
	}
}

func TestParseClients_SkipsMalformed(t *testing.T) {
	out := `notapid $7
-3 $1
555 $7
`
	clients := ParseClients(out)
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
	if clients[0].PID != 555 {
		t.Errorf("client pid: got %d, want 555", clients[0].PID)
	}
}
