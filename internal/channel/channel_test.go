package channel

import (
	"testing"

	"github.com/rfmesh/rfmesh/internal/common"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"General":  "#general",
		" #Chat ":  "#chat",
		"#already": "#already",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinLeaveLifecycle(t *testing.T) {
	s := New()
	var joinedEvents, leftEvents []string
	s.OnJoinBroadcast(func(name string) { joinedEvents = append(joinedEvents, name) })
	s.OnLeaveBroadcast(func(name string) { leftEvents = append(leftEvents, name) })

	fp := common.Fingerprint("selffp")
	if err := s.JoinChannel("general", "", fp, "alice"); err != nil {
		t.Fatal(err)
	}
	if len(s.Joined()) != 1 || s.Joined()[0] != "#general" {
		t.Fatalf("expected joined channel, got %v", s.Joined())
	}
	if len(joinedEvents) != 1 {
		t.Fatal("expected join-broadcast event")
	}

	s.LeaveChannel("general", fp)
	if len(s.Joined()) != 0 {
		t.Fatal("expected channel no longer joined")
	}
	if len(leftEvents) != 1 {
		t.Fatal("expected leave-broadcast event")
	}
}

func TestJoinRejectsWrongPassword(t *testing.T) {
	s := New()
	fp := common.Fingerprint("selffp")
	if err := s.JoinChannel("secret", "correct-horse", fp, "alice"); err != nil {
		t.Fatal(err)
	}
	s.LeaveChannel("secret", fp)

	otherFp := common.Fingerprint("otherfp")
	if err := s.JoinChannel("secret", "wrong", otherFp, "bob"); err == nil {
		t.Fatal("expected unauthorized error for wrong password")
	}
}

func TestSendChannelMessageRequiresJoin(t *testing.T) {
	s := New()
	if err := s.SendChannelMessage("general", "hello"); err == nil {
		t.Fatal("expected error sending to an unjoined channel")
	}

	fp := common.Fingerprint("selffp")
	var ready []string
	s.OnMessageReady(func(name, text string) { ready = append(ready, name+":"+text) })

	if err := s.JoinChannel("general", "", fp, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.SendChannelMessage("general", "hello"); err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0] != "#general:hello" {
		t.Fatalf("expected message-ready event, got %v", ready)
	}
}

func TestObserveAnnounceOnlyAffectsUnjoinedChannels(t *testing.T) {
	s := New()
	fp := common.Fingerprint("selffp")
	if err := s.JoinChannel("general", "", fp, "alice"); err != nil {
		t.Fatal(err)
	}

	s.ObserveAnnounce("general", 42)
	s.ObserveAnnounce("random", 7)

	if len(s.Available()) != 1 || s.Available()[0] != "#random" {
		t.Fatalf("expected only #random to be available, got %v", s.Available())
	}
}

func TestParseCommands(t *testing.T) {
	cases := []struct {
		input   string
		wantKind CommandKind
	}{
		{"/join general", CommandJoin},
		{"/leave general", CommandLeave},
		{"/channels", CommandList},
		{"/list", CommandList},
		{"/who general", CommandWho},
		{"/msg bob hello there", CommandMsg},
		{"/help", CommandHelp},
		{"hello world", CommandNone},
	}
	for _, c := range cases {
		got := ParseCommand(c.input)
		if got.Kind != c.wantKind {
			t.Fatalf("ParseCommand(%q).Kind = %v, want %v", c.input, got.Kind, c.wantKind)
		}
	}
}

func TestParseCommandUnknownSlashIsUnhandled(t *testing.T) {
	c := ParseCommand("/nonsense arg")
	if c.Handled {
		t.Fatal("expected unknown slash command to be unhandled")
	}
}

func TestParseMsgCommandSplitsTargetAndText(t *testing.T) {
	c := ParseCommand("/msg bob hello there friend")
	if c.TargetNickname != "bob" || c.Text != "hello there friend" {
		t.Fatalf("got target=%q text=%q", c.TargetNickname, c.Text)
	}
}
