package ripple

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/ripple/wire"
)

func randomTID() (wire.TID, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	return wire.TID(binary.BigEndian.Uint16(b[:])) & wire.MaxTID, nil
}
