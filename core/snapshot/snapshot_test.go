package snapshot

import "testing"

func wordOf(b byte) Word {
	var w Word
	w[31] = b
	return w
}

func TestGetEmptyStoreReturnsSentinel(t *testing.T) {
	s := New()
	if got := s.Get(); got != Zero {
		t.Fatalf("expected zero sentinel, got %x", got)
	}
	if got := s.GetAt(1_000_000); got != Zero {
		t.Fatalf("expected zero sentinel for timed query, got %x", got)
	}
}

func TestSetAppendsAndGetReturnsLatest(t *testing.T) {
	s := New()
	s.Set(100, wordOf(1))
	s.Set(200, wordOf(2))
	s.Set(300, wordOf(3))
	if got := s.Get(); got != wordOf(3) {
		t.Fatalf("expected latest value 3, got %x", got)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
}

func TestSetSameTimestampOverwritesLastEntry(t *testing.T) {
	s := New()
	s.Set(100, wordOf(1))
	s.Set(100, wordOf(9))
	if s.Len() != 1 {
		t.Fatalf("same-timestamp write must overwrite, got %d entries", s.Len())
	}
	if got := s.Get(); got != wordOf(9) {
		t.Fatalf("expected overwritten value 9, got %x", got)
	}
}

func TestGetAtMatchesHistoricalGet(t *testing.T) {
	s := New()
	s.Set(100, wordOf(1))
	s.Set(200, wordOf(2))
	s.Set(300, wordOf(3))

	cases := []struct {
		query uint64
		want  Word
	}{
		{50, Zero},       // before first write
		{100, wordOf(1)}, // exact match
		{150, wordOf(1)}, // between entries
		{200, wordOf(2)},
		{299, wordOf(2)},
		{300, wordOf(3)},
		{10_000, wordOf(3)}, // after last write
	}
	for _, tc := range cases {
		if got := s.GetAt(tc.query); got != tc.want {
			t.Fatalf("GetAt(%d) = %x, want %x", tc.query, got, tc.want)
		}
	}
}

func TestFromEntriesRoundTrip(t *testing.T) {
	s := New()
	s.Set(10, wordOf(1))
	s.Set(20, wordOf(2))

	restored := FromEntries(s.Entries())
	if restored.Get() != s.Get() {
		t.Fatalf("restored latest mismatch")
	}
	if restored.GetAt(15) != wordOf(1) {
		t.Fatalf("restored historical lookup mismatch")
	}
}
