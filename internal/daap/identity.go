package daap

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

var identityNamespace = uuid.MustParse("6f1d3c2a-0b7e-5d44-9a51-3c8e2f7b9d10")

// Identity is the share's stable database identity. Clients cache their view
// of a library by persistent id, so it must survive restarts.
type Identity struct {
	UUID         uuid.UUID
	PersistentID uint64
}

// NewIdentity derives an identity from seed, usually the database path.
func NewIdentity(seed string) Identity {
	u := uuid.NewSHA1(identityNamespace, []byte(seed))
	id := binary.BigEndian.Uint64(u[:8])
	if id == 0 {
		id = 1
	}
	return Identity{UUID: u, PersistentID: id}
}

// DatabaseID is the hex form advertised in the discovery record.
func (i Identity) DatabaseID() string {
	return fmt.Sprintf("%016X", i.PersistentID)
}
