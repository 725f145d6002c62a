package wire

// Echo is echoed back by the receiver.
type Echo struct {
	Text string
}

// Ping carries a sequence number.
type Ping struct {
	Seq uint64
}
