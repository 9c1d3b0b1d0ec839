package fcast

import "testing"

func TestParseRangeNoHeader(t *testing.T) {
	start, end, status := parseRange("", 1000)
	if start != 0 || end != 999 || status != 200 {
		t.Fatalf("unexpected whole-file range: %d-%d status=%d", start, end, status)
	}
}

func TestParseRangeExplicit(t *testing.T) {
	start, end, status := parseRange("bytes=100-199", 1000)
	if start != 100 || end != 199 || status != 206 {
		t.Fatalf("unexpected range: %d-%d status=%d", start, end, status)
	}
}

func TestParseRangeOpenEnded(t *testing.T) {
	start, end, status := parseRange("bytes=900-", 1000)
	if start != 900 || end != 999 || status != 206 {
		t.Fatalf("unexpected range: %d-%d status=%d", start, end, status)
	}
}

func TestParseRangeMalformedReturns400(t *testing.T) {
	for _, header := range []string{
		"bytes=garbage",
		"not-bytes=1-2",
		"bytes=100",
		"bytes=-1-5",
		"bytes=500-100",
	} {
		if _, _, status := parseRange(header, 1000); status != 400 {
			t.Fatalf("header %q: expected 400, got %d", header, status)
		}
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	fs, err := NewFileServer()
	if err != nil {
		t.Fatalf("NewFileServer: %v", err)
	}
	defer fs.Close()

	key, err := fs.Register("/tmp/does-not-need-to-exist-for-this-check", "text/plain")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	fs.mu.RLock()
	_, ok := fs.entries[key]
	fs.mu.RUnlock()
	if !ok {
		t.Fatal("expected entry to be registered")
	}

	fs.Unregister(key)
	fs.mu.RLock()
	_, ok = fs.entries[key]
	fs.mu.RUnlock()
	if ok {
		t.Fatal("expected entry to be removed")
	}
}
