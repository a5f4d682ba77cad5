package race

import (
	"errors"
	"testing"
)

func newRacingState(t *testing.T, ids ...int) *State {
	t.Helper()
	s := NewState("r1", 60)
	for _, id := range ids {
		s.AddParticipant(id, "player", "#fff")
		if _, err := s.MarkReady(id); err != nil {
			t.Fatalf("ready %d: %v", id, err)
		}
	}
	if err := s.BeginCountdown(); err != nil {
		t.Fatalf("countdown: %v", err)
	}
	if err := s.BeginRacing(1000); err != nil {
		t.Fatalf("racing: %v", err)
	}
	return s
}

func TestStatusOnlyMovesForward(t *testing.T) {
	s := NewState("r1", 60)

	if err := s.BeginRacing(0); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("racing from waiting: want ErrWrongStatus, got %v", err)
	}
	if err := s.FinishRace(); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("finish from waiting: want ErrWrongStatus, got %v", err)
	}

	if err := s.BeginCountdown(); err != nil {
		t.Fatalf("countdown: %v", err)
	}
	if err := s.BeginCountdown(); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("countdown twice: want ErrWrongStatus, got %v", err)
	}

	if err := s.BeginRacing(1000); err != nil {
		t.Fatalf("racing: %v", err)
	}
	if s.StartTime == nil || *s.StartTime != 1000 {
		t.Fatalf("want startTime=1000, got %v", s.StartTime)
	}
	if err := s.BeginRacing(2000); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("racing twice: want ErrWrongStatus, got %v", err)
	}
	if *s.StartTime != 1000 {
		t.Fatalf("startTime mutated to %d", *s.StartTime)
	}
}

func TestFirstJoinerIsHost(t *testing.T) {
	s := NewState("r1", 60)
	s.AddParticipant(7, "alice", "#f00")
	s.AddParticipant(8, "bob", "#0f0")

	if s.HostParticipantID == nil || *s.HostParticipantID != 7 {
		t.Fatalf("want host=7, got %v", s.HostParticipantID)
	}

	// Rejoining does not duplicate the record or reassign the host.
	p, created := s.AddParticipant(7, "alice2", "#00f")
	if created || p.Username != "alice" {
		t.Fatalf("rejoin should reuse the record, got created=%v username=%q", created, p.Username)
	}
}

func TestAllReadyNeedsTwoParticipants(t *testing.T) {
	s := NewState("r1", 60)
	s.AddParticipant(1, "alice", "")
	if _, err := s.MarkReady(1); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if s.AllReady() {
		t.Fatal("single ready participant must not start the race")
	}

	s.AddParticipant(2, "bob", "")
	if s.AllReady() {
		t.Fatal("unready participant must block the race")
	}
	if _, err := s.MarkReady(2); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if !s.AllReady() {
		t.Fatal("all ready with two participants should pass")
	}
}

func TestReadyIsMonotone(t *testing.T) {
	s := NewState("r1", 60)
	s.AddParticipant(1, "alice", "")

	changed, err := s.MarkReady(1)
	if err != nil || !changed {
		t.Fatalf("first ready: changed=%v err=%v", changed, err)
	}
	changed, err = s.MarkReady(1)
	if err != nil || changed {
		t.Fatalf("second ready: changed=%v err=%v", changed, err)
	}

	if err := s.BeginCountdown(); err != nil {
		t.Fatalf("countdown: %v", err)
	}
	if _, err := s.MarkReady(1); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("ready after countdown: want ErrWrongStatus, got %v", err)
	}
}

func TestFinishAssignsArrivalPositions(t *testing.T) {
	s := newRacingState(t, 1, 2, 3)

	order := []int{2, 3, 1}
	for i, id := range order {
		p, err := s.Finish(id, 80, 95, int64(2000+i))
		if err != nil || p == nil {
			t.Fatalf("finish %d: p=%v err=%v", id, p, err)
		}
		if *p.Position != i+1 {
			t.Fatalf("finish %d: want position %d, got %d", id, i+1, *p.Position)
		}
	}

	seen := map[int]bool{}
	for _, p := range s.Participants {
		if seen[*p.Position] {
			t.Fatalf("duplicate position %d", *p.Position)
		}
		seen[*p.Position] = true
	}
	for i := 1; i <= 3; i++ {
		if !seen[i] {
			t.Fatalf("missing position %d", i)
		}
	}
}

func TestDuplicateFinishKeepsPosition(t *testing.T) {
	s := newRacingState(t, 1, 2)

	if _, err := s.Finish(1, 80, 97, 2000); err != nil {
		t.Fatalf("finish: %v", err)
	}
	p, err := s.Finish(1, 120, 50, 3000)
	if err != nil || p != nil {
		t.Fatalf("re-finish: want nil,nil, got %v,%v", p, err)
	}

	got := s.Participants[1]
	if *got.Position != 1 || *got.FinishTime != 2000 || got.WPM != 80 {
		t.Fatalf("re-finish mutated record: %+v", got)
	}
}

func TestProgressRules(t *testing.T) {
	cases := []struct {
		name     string
		progress float64
		want     float64
	}{
		{"normal", 42.5, 42.5},
		{"clamped high", 140, 100},
		{"clamped low", -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newRacingState(t, 1, 2)
			p, err := s.ApplyProgress(1, tc.progress, 70, 96)
			if err != nil || p == nil {
				t.Fatalf("progress: p=%v err=%v", p, err)
			}
			if p.Progress != tc.want {
				t.Fatalf("want progress %v, got %v", tc.want, p.Progress)
			}
		})
	}

	// Progress outside racing is refused.
	s := NewState("r1", 60)
	s.AddParticipant(1, "alice", "")
	if _, err := s.ApplyProgress(1, 10, 70, 96); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("progress while waiting: want ErrWrongStatus, got %v", err)
	}

	// Progress for a finished participant is dropped silently.
	s2 := newRacingState(t, 1, 2)
	if _, err := s2.Finish(1, 80, 97, 2000); err != nil {
		t.Fatalf("finish: %v", err)
	}
	p, err := s2.ApplyProgress(1, 10, 5, 5)
	if err != nil || p != nil {
		t.Fatalf("progress after finish: want nil,nil, got %v,%v", p, err)
	}
	if s2.Participants[1].WPM != 80 {
		t.Fatalf("finished stats mutated: %+v", s2.Participants[1])
	}
}

func TestFinalStandingsSort(t *testing.T) {
	s := newRacingState(t, 1, 2, 3, 4)

	// 3 finishes first, then 1. 2 and 4 never finish; 2 is further along.
	if _, err := s.Finish(3, 70, 92, 2000); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := s.Finish(1, 90, 99, 2500); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := s.ApplyProgress(2, 80, 65, 95); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if _, err := s.ApplyProgress(4, 60, 72, 95); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := s.FinishRace(); err != nil {
		t.Fatalf("finish race: %v", err)
	}

	standings := s.FinalStandings()
	wantOrder := []int{3, 1, 2, 4}
	for i, want := range wantOrder {
		if standings[i].ParticipantID != want {
			t.Fatalf("slot %d: want participant %d, got %d", i, want, standings[i].ParticipantID)
		}
		if standings[i].Position != i+1 {
			t.Fatalf("slot %d: want re-stamped position %d, got %d", i, i+1, standings[i].Position)
		}
	}

	// Re-stamping must not leak into the stored arrival positions.
	if *s.Participants[3].Position != 1 || *s.Participants[1].Position != 2 {
		t.Fatal("arrival positions were rewritten by FinalStandings")
	}
	if s.Participants[2].Position != nil {
		t.Fatal("unfinished participant gained a stored position")
	}
}

func TestUnfinishedTieBreakByWPM(t *testing.T) {
	s := newRacingState(t, 1, 2)
	if _, err := s.ApplyProgress(1, 50, 60, 95); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if _, err := s.ApplyProgress(2, 50, 75, 95); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := s.FinishRace(); err != nil {
		t.Fatalf("finish race: %v", err)
	}

	standings := s.FinalStandings()
	if standings[0].ParticipantID != 2 {
		t.Fatalf("equal progress should rank by wpm, got %+v", standings)
	}
}
