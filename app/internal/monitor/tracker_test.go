package monitor

import (
	"sync"
	"testing"
)

const siteURL = "https://example.com"

func TestUpdate_CountsConsecutiveDowns(t *testing.T) {
	ft := NewFailureTracker()

	for want := 1; want <= 3; want++ {
		got, before := ft.Update(siteURL, false)
		if got != want {
			t.Errorf("expected %d failures, got %d", want, got)
		}
		if before != want-1 {
			t.Errorf("expected previous count %d, got %d", want-1, before)
		}
	}
}

func TestUpdate_UpResetsAndReportsPrevious(t *testing.T) {
	ft := NewFailureTracker()
	ft.Update(siteURL, false)
	ft.Update(siteURL, false)

	got, before := ft.Update(siteURL, true)
	if got != 0 {
		t.Errorf("expected 0 after an up sample, got %d", got)
	}
	if before != 2 {
		t.Errorf("expected to recover from 2 failures, got %d", before)
	}

	// Next down starts at 1 again
	if got, _ := ft.Update(siteURL, false); got != 1 {
		t.Errorf("expected 1 after reset, got %d", got)
	}
}

func TestUpdate_TargetsAreIndependent(t *testing.T) {
	ft := NewFailureTracker()
	ft.Update(siteURL, false)
	ft.Update("tcp://10.0.0.2:22", false)
	ft.Update(siteURL, false)

	if n := ft.Failures(siteURL); n != 2 {
		t.Errorf("site failures = %d, want 2", n)
	}
	if n := ft.Failures("tcp://10.0.0.2:22"); n != 1 {
		t.Errorf("tcp failures = %d, want 1", n)
	}
}

func TestReset(t *testing.T) {
	ft := NewFailureTracker()
	ft.Update(siteURL, false)
	ft.Reset(siteURL)

	if n := ft.Failures(siteURL); n != 0 {
		t.Errorf("expected 0 after reset, got %d", n)
	}
}

func TestUpdate_Concurrent(t *testing.T) {
	ft := NewFailureTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ft.Update(siteURL, false)
		}()
	}
	wg.Wait()

	if n := ft.Failures(siteURL); n != 50 {
		t.Errorf("expected 50 failures, got %d", n)
	}
}
