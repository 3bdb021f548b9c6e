// Package world defines the in-memory game world model exchanged between
// peers: rooms, their exits to neighbouring rooms, and the objects they
// contain. Snapshots are serialized with an explicit, versioned binary
// schema; decoding reconstructs declared data only and never instantiates
// types named by the peer.
package world

// Object is a thing lying in a room.
type Object struct {
	Name        string
	Description string
}

// Room is one location in the world. Exits maps a direction name to the
// ID of the neighbouring room it leads to.
type Room struct {
	ID          uint32
	Name        string
	Description string
	Exits       map[string]uint32
	Objects     []Object
}

// Snapshot is one serializable unit of world state.
type Snapshot struct {
	Rooms []Room
}

// Room returns the room with the given ID, or nil if the snapshot has none.
func (s *Snapshot) Room(id uint32) *Room {
	for i := range s.Rooms {
		if s.Rooms[i].ID == id {
			return &s.Rooms[i]
		}
	}
	return nil
}

// Neighbors returns the rooms reachable through the exits of the room with
// the given ID. Exits pointing at rooms absent from the snapshot are skipped.
func (s *Snapshot) Neighbors(id uint32) []*Room {
	room := s.Room(id)
	if room == nil {
		return nil
	}

	var neighbors []*Room
	for _, target := range room.Exits {
		if n := s.Room(target); n != nil {
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}
