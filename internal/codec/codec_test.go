package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/ulikunitz/xz/lzma"
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		t.Fatalf("lzma writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("lzma write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lzma close: %v", err)
	}
	return buf.Bytes()
}

func TestDecompress_SingleStream(t *testing.T) {
	payload := []byte("hello bi5")
	got, err := Decompress(compress(t, payload))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestDecompress_Empty(t *testing.T) {
	got, err := Decompress(nil)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(got))
	}
}

func TestDecompress_ConcatenatedStreams(t *testing.T) {
	a := compress(t, []byte("first"))
	b := compress(t, []byte("second"))
	got, err := Decompress(append(append([]byte{}, a...), b...))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(got) != "firstsecond" {
		t.Errorf("got %q, want %q", got, "firstsecond")
	}
}

func TestDecompress_TrailingGarbage(t *testing.T) {
	blob := append(compress(t, []byte("good")), 0xDE, 0xAD, 0xBE, 0xEF)
	got, err := Decompress(blob)
	if err != nil {
		t.Fatalf("trailing garbage should truncate, got error: %v", err)
	}
	if string(got) != "good" {
		t.Errorf("got %q, want %q", got, "good")
	}
}

func TestDecompress_MalformedFirstStream(t *testing.T) {
	if _, err := Decompress([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}); err == nil {
		t.Error("expected error for malformed first stream")
	}
}

func TestDecodeTicks_HourOffset(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	// Single tick at time_ms=1 in hour 12 → 12:00:00.001
	var rec [TickRecordSize]byte
	binary.BigEndian.PutUint32(rec[0:4], 1)
	binary.BigEndian.PutUint32(rec[4:8], 108551)  // ask
	binary.BigEndian.PutUint32(rec[8:12], 108549) // bid
	binary.BigEndian.PutUint32(rec[12:16], math.Float32bits(0.75))
	binary.BigEndian.PutUint32(rec[16:20], math.Float32bits(1.5))

	ticks := DecodeTicks("EURUSD", day, 12, rec[:])
	if len(ticks) != 1 {
		t.Fatalf("expected 1 tick, got %d", len(ticks))
	}

	tk := ticks[0]
	want := time.Date(2024, 1, 15, 12, 0, 0, int(time.Millisecond), time.UTC)
	if !tk.TS.Equal(want) {
		t.Errorf("ts=%v, want %v", tk.TS, want)
	}
	if tk.Ask != 1.08551 {
		t.Errorf("ask=%v, want 1.08551", tk.Ask)
	}
	if tk.Bid != 1.08549 {
		t.Errorf("bid=%v, want 1.08549", tk.Bid)
	}
	if tk.AskVol != 750000 {
		t.Errorf("ask_vol=%d, want 750000", tk.AskVol)
	}
	if tk.BidVol != 1500000 {
		t.Errorf("bid_vol=%d, want 1500000", tk.BidVol)
	}
}

func TestDecodeTicks_SpecialPointValue(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var rec [TickRecordSize]byte
	binary.BigEndian.PutUint32(rec[4:8], 2150500) // 2150.5 at point 1000
	binary.BigEndian.PutUint32(rec[8:12], 2150300)

	ticks := DecodeTicks("XAUUSD", day, 0, rec[:])
	if ticks[0].Ask != 2150.5 {
		t.Errorf("ask=%v, want 2150.5", ticks[0].Ask)
	}
	if ticks[0].Bid != 2150.3 {
		t.Errorf("bid=%v, want 2150.3", ticks[0].Bid)
	}
}

func TestDecodeTicks_TrailingRemainder(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	raw := make([]byte, TickRecordSize+7) // one record + junk tail
	if got := DecodeTicks("EURUSD", day, 3, raw); len(got) != 1 {
		t.Errorf("expected 1 tick, got %d", len(got))
	}
}

func TestTicks_EncodeDecodeRoundTrip(t *testing.T) {
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	raw := make([]byte, 0, 3*TickRecordSize)
	for i, ms := range []uint32{0, 999, 3_599_999} {
		var rec [TickRecordSize]byte
		binary.BigEndian.PutUint32(rec[0:4], ms)
		binary.BigEndian.PutUint32(rec[4:8], uint32(108000+i))
		binary.BigEndian.PutUint32(rec[8:12], uint32(107990+i))
		binary.BigEndian.PutUint32(rec[12:16], math.Float32bits(0.25*float32(i+1)))
		binary.BigEndian.PutUint32(rec[16:20], math.Float32bits(0.5*float32(i+1)))
		raw = append(raw, rec[:]...)
	}

	ticks := DecodeTicks("EURUSD", day, 7, raw)
	back := EncodeTicks("EURUSD", day, 7, ticks)
	if !bytes.Equal(back, raw) {
		t.Errorf("re-encoded blob differs from original\n got %x\nwant %x", back, raw)
	}
}

func TestDecodeCandles(t *testing.T) {
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	var rec [CandleRecordSize]byte
	binary.BigEndian.PutUint32(rec[0:4], 120)     // 00:02:00
	binary.BigEndian.PutUint32(rec[4:8], 108500)  // open
	binary.BigEndian.PutUint32(rec[8:12], 108520) // close
	binary.BigEndian.PutUint32(rec[12:16], 108490)
	binary.BigEndian.PutUint32(rec[16:20], 108530)
	binary.BigEndian.PutUint32(rec[20:24], math.Float32bits(12.347))

	candles := DecodeCandles("EURUSD", base, rec[:])
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}

	c := candles[0]
	if want := base.Add(2 * time.Minute); !c.TS.Equal(want) {
		t.Errorf("ts=%v, want %v", c.TS, want)
	}
	if c.Open != 1.085 || c.Close != 1.0852 || c.Low != 1.0849 || c.High != 1.0853 {
		t.Errorf("ohlc=%v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 12.35 {
		t.Errorf("volume=%v, want 12.35 (rounded to 2 decimals)", c.Volume)
	}
}
