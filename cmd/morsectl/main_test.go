package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"morsepad/protocol"
)

func encodePlan(cmds []protocol.Command) string {
	parts := make([]string, len(cmds))
	for i, c := range cmds {
		parts[i] = c.Encode()
	}
	return strings.Join(parts, " ")
}

func TestKeyingPlan(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"e", "DOT VALIDATE"},
		{"Hi u", "DOT DOT DOT DOT VALIDATE DOT DOT VALIDATE SPACE DOT DOT DASH VALIDATE"},
		{"  ", ""},
		{"é a", "DOT DASH VALIDATE"},
	}
	for _, tc := range cases {
		if got := encodePlan(keyingPlan(tc.in)); got != tc.want {
			t.Fatalf("keyingPlan(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTranscriptView(t *testing.T) {
	v := &transcriptView{}
	for _, raw := range []string{"MORSE:.", "MORSE:..", "CHAR:I", "SPACE", "MORSE:-", "CLEARED"} {
		n, ok := protocol.ParseNotification(raw)
		if !ok {
			t.Fatalf("ParseNotification(%q) failed", raw)
		}
		v.apply(n)
	}
	if v.sequence != "" || v.text.String() != "I " {
		t.Fatalf("view = seq %q text %q", v.sequence, v.text.String())
	}
}

func TestOfflineCommands(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"encode", "sos"})
	if err := root.Execute(); err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != ".../---/..." {
		t.Fatalf("encode output = %q", got)
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"decode", "..../..", ".--"})
	if err := root.Execute(); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "HI W" {
		t.Fatalf("decode output = %q", got)
	}
}

func TestConnectionsUseDistinctClientIDs(t *testing.T) {
	// A watch and a send from the same host must not take over each other's session.
	watchOpts := clientOptions()
	sendOpts := clientOptions()
	if watchOpts.ClientID == sendOpts.ClientID {
		t.Fatalf("clientOptions() ids = %q and %q, want distinct", watchOpts.ClientID, sendOpts.ClientID)
	}
	prefix := fmt.Sprintf("morsectl-%d-", os.Getpid())
	for _, id := range []string{watchOpts.ClientID, sendOpts.ClientID} {
		if !strings.HasPrefix(id, prefix) {
			t.Fatalf("client id = %q, want prefix %q", id, prefix)
		}
		if len(id) > 23 {
			t.Fatalf("client id %q is longer than the 23 bytes MQTT 3.1 brokers must accept", id)
		}
	}
	if len(watchOpts.Servers) != 1 || watchOpts.Servers[0].Host != fmt.Sprintf("%s:%d", brokerHost, brokerPort) {
		t.Fatalf("clientOptions() servers = %v", watchOpts.Servers)
	}
}

func TestTableCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"table"})
	if err := root.Execute(); err != nil {
		t.Fatalf("table error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 41 {
		t.Fatalf("table lines = %d, want 41", len(lines))
	}
	if lines[0] != "A  .-" {
		t.Fatalf("table first line = %q, want %q", lines[0], "A  .-")
	}
}
