package wire

type (
	// TID is the transaction ID carried in the frame header.
	TID uint16
)

const (
	// HeaderSize is the size of the frame header.
	HeaderSize = 2

	// MaxTID is the largest transaction ID representable in the header.
	MaxTID TID = 0x7fff

	requestFlag uint16 = 0x8000
)

// Header is the decoded frame header.
type Header struct {
	TID       TID
	IsRequest bool
}
