package world

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/hollowmud/wire"
)

// SchemaVersion is the current snapshot encoding version. It is the first
// byte of every payload, so old readers fail loudly instead of misreading.
const SchemaVersion = 1

// Schema bounds. Strings and collection counts are length-prefixed with
// uint16, so nothing in a snapshot may exceed them.
const (
	maxStringBytes = 1<<16 - 1
	maxCount       = 1<<16 - 1
)

// Codec errors.
var (
	// ErrUnknownVersion is returned when a payload declares a schema version
	// this package does not understand.
	ErrUnknownVersion = errors.New("world: unknown schema version")
	// ErrMalformed is returned when a payload is truncated, has trailing
	// bytes, or otherwise is not a valid snapshot encoding.
	ErrMalformed = errors.New("world: malformed snapshot encoding")
	// ErrValueTooLarge is returned on encode when a string or collection
	// exceeds the schema's bounds.
	ErrValueTooLarge = errors.New("world: value exceeds schema bounds")
)

// Codec encodes and decodes Snapshot values using the versioned binary
// schema. It satisfies wire.Codec.
type Codec struct{}

// Encode serializes a *Snapshot (or Snapshot) into payload bytes. Exits are
// written in sorted direction order, so equal snapshots encode identically.
func (Codec) Encode(v any) ([]byte, error) {
	var snap *Snapshot
	switch s := v.(type) {
	case *Snapshot:
		snap = s
	case Snapshot:
		snap = &s
	default:
		return nil, errors.Wrapf(wire.ErrUnsupportedValue, "world codec: %T", v)
	}

	if len(snap.Rooms) > maxCount {
		return nil, errors.Wrapf(ErrValueTooLarge, "%d rooms", len(snap.Rooms))
	}

	w := encoder{buf: []byte{SchemaVersion}}
	w.uint16(uint16(len(snap.Rooms)))
	for i := range snap.Rooms {
		if err := w.room(&snap.Rooms[i]); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

// Decode reconstructs a *Snapshot from payload bytes. Truncated input,
// trailing bytes, and unknown schema versions all fail.
func (Codec) Decode(p []byte) (any, error) {
	r := decoder{buf: p}

	version, err := r.byte()
	if err != nil {
		return nil, err
	}
	if version != SchemaVersion {
		return nil, errors.Wrapf(ErrUnknownVersion, "version %d", version)
	}

	roomCount, err := r.uint16()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Rooms: make([]Room, 0, roomCount)}
	for i := 0; i < int(roomCount); i++ {
		room, err := r.room()
		if err != nil {
			return nil, err
		}
		snap.Rooms = append(snap.Rooms, room)
	}

	if r.off != len(r.buf) {
		return nil, errors.Wrapf(ErrMalformed, "%d trailing bytes", len(r.buf)-r.off)
	}
	return snap, nil
}

type encoder struct {
	buf []byte
}

func (w *encoder) uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *encoder) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *encoder) string(s string) error {
	if len(s) > maxStringBytes {
		return errors.Wrapf(ErrValueTooLarge, "string of %d bytes", len(s))
	}
	w.uint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *encoder) room(room *Room) error {
	if len(room.Exits) > maxCount || len(room.Objects) > maxCount {
		return errors.Wrapf(ErrValueTooLarge, "room %d", room.ID)
	}

	w.uint32(room.ID)
	if err := w.string(room.Name); err != nil {
		return err
	}
	if err := w.string(room.Description); err != nil {
		return err
	}

	directions := make([]string, 0, len(room.Exits))
	for dir := range room.Exits {
		directions = append(directions, dir)
	}
	sort.Strings(directions)

	w.uint16(uint16(len(room.Exits)))
	for _, dir := range directions {
		if err := w.string(dir); err != nil {
			return err
		}
		w.uint32(room.Exits[dir])
	}

	w.uint16(uint16(len(room.Objects)))
	for i := range room.Objects {
		if err := w.string(room.Objects[i].Name); err != nil {
			return err
		}
		if err := w.string(room.Objects[i].Description); err != nil {
			return err
		}
	}
	return nil
}

type decoder struct {
	buf []byte
	off int
}

func (r *decoder) take(n int) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, errors.Wrapf(ErrMalformed, "need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *decoder) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *decoder) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *decoder) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *decoder) string() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *decoder) room() (Room, error) {
	var room Room
	var err error

	if room.ID, err = r.uint32(); err != nil {
		return Room{}, err
	}
	if room.Name, err = r.string(); err != nil {
		return Room{}, err
	}
	if room.Description, err = r.string(); err != nil {
		return Room{}, err
	}

	exitCount, err := r.uint16()
	if err != nil {
		return Room{}, err
	}
	if exitCount > 0 {
		room.Exits = make(map[string]uint32, exitCount)
	}
	for i := 0; i < int(exitCount); i++ {
		dir, err := r.string()
		if err != nil {
			return Room{}, err
		}
		target, err := r.uint32()
		if err != nil {
			return Room{}, err
		}
		room.Exits[dir] = target
	}

	objectCount, err := r.uint16()
	if err != nil {
		return Room{}, err
	}
	for i := 0; i < int(objectCount); i++ {
		var obj Object
		if obj.Name, err = r.string(); err != nil {
			return Room{}, err
		}
		if obj.Description, err = r.string(); err != nil {
			return Room{}, err
		}
		room.Objects = append(room.Objects, obj)
	}

	return room, nil
}
