package world

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hollowmud/wire"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Rooms: []Room{
			{
				ID:          1,
				Name:        "Gatehouse",
				Description: "A narrow stone arch, slick with moss.",
				Exits:       map[string]uint32{"north": 2, "east": 3},
				Objects: []Object{
					{Name: "lantern", Description: "Brass, still warm."},
				},
			},
			{
				ID:          2,
				Name:        "Courtyard",
				Description: "Weeds push through the flagstones.",
				Exits:       map[string]uint32{"south": 1},
			},
			{
				ID:   3,
				Name: "Cellar",
			},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	var c Codec
	want := testSnapshot()

	payload, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if payload[0] != SchemaVersion {
		t.Errorf("first byte = %d, want schema version %d", payload[0], SchemaVersion)
	}

	v, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := v.(*Snapshot)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestCodec_Deterministic(t *testing.T) {
	var c Codec
	snap := testSnapshot()

	first, err := c.Encode(snap)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Map iteration order varies; the sorted exit encoding must not.
	for i := 0; i < 16; i++ {
		again, err := c.Encode(snap)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("same snapshot encoded differently across runs")
		}
	}
}

func TestCodec_EncodeByValue(t *testing.T) {
	var c Codec

	fromPtr, err := c.Encode(testSnapshot())
	if err != nil {
		t.Fatalf("Encode(*Snapshot) failed: %v", err)
	}
	fromVal, err := c.Encode(*testSnapshot())
	if err != nil {
		t.Fatalf("Encode(Snapshot) failed: %v", err)
	}
	if !bytes.Equal(fromPtr, fromVal) {
		t.Error("pointer and value encodings differ")
	}
}

func TestCodec_EncodeWrongType(t *testing.T) {
	var c Codec
	if _, err := c.Encode("not a snapshot"); !errors.Is(err, wire.ErrUnsupportedValue) {
		t.Errorf("expected wire.ErrUnsupportedValue, got %v", err)
	}
}

func TestCodec_EncodeStringTooLong(t *testing.T) {
	var c Codec
	snap := &Snapshot{Rooms: []Room{{
		ID:   1,
		Name: strings.Repeat("x", maxStringBytes+1),
	}}}

	if _, err := c.Encode(snap); !errors.Is(err, ErrValueTooLarge) {
		t.Errorf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestCodec_DecodeUnknownVersion(t *testing.T) {
	var c Codec
	payload, err := c.Encode(testSnapshot())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	payload[0] = SchemaVersion + 1
	if _, err := c.Decode(payload); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestCodec_DecodeTruncated(t *testing.T) {
	var c Codec
	payload, err := c.Encode(testSnapshot())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Every proper prefix must fail; none may panic or succeed.
	for n := 0; n < len(payload); n++ {
		if _, err := c.Decode(payload[:n]); !errors.Is(err, ErrMalformed) {
			t.Fatalf("prefix of %d bytes: expected ErrMalformed, got %v", n, err)
		}
	}
}

func TestCodec_DecodeTrailingBytes(t *testing.T) {
	var c Codec
	payload, err := c.Encode(testSnapshot())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	payload = append(payload, 0xFF)
	if _, err := c.Decode(payload); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for trailing bytes, got %v", err)
	}
}

func TestCodec_EmptySnapshot(t *testing.T) {
	var c Codec

	payload, err := c.Encode(&Snapshot{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	v, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := v.(*Snapshot); len(got.Rooms) != 0 {
		t.Errorf("decoded %d rooms, want 0", len(got.Rooms))
	}
}

func TestSnapshot_Room(t *testing.T) {
	snap := testSnapshot()

	if room := snap.Room(2); room == nil || room.Name != "Courtyard" {
		t.Errorf("Room(2) = %+v, want Courtyard", room)
	}
	if room := snap.Room(99); room != nil {
		t.Errorf("Room(99) = %+v, want nil", room)
	}
}

func TestSnapshot_Neighbors(t *testing.T) {
	snap := testSnapshot()

	neighbors := snap.Neighbors(1)
	if len(neighbors) != 2 {
		t.Fatalf("Neighbors(1) returned %d rooms, want 2", len(neighbors))
	}

	seen := map[uint32]bool{}
	for _, n := range neighbors {
		seen[n.ID] = true
	}
	if !seen[2] || !seen[3] {
		t.Errorf("Neighbors(1) = %v, want rooms 2 and 3", seen)
	}

	if got := snap.Neighbors(99); got != nil {
		t.Errorf("Neighbors(99) = %v, want nil", got)
	}
}

func TestCodec_FramedRoundTrip(t *testing.T) {
	var c Codec
	want := testSnapshot()

	payload, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var buf bytes.Buffer
	if err := wire.WriteMessage(&buf, payload); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	read, err := wire.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	v, err := c.Decode(read)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(v.(*Snapshot), want) {
		t.Error("framed round trip mismatch")
	}
}
