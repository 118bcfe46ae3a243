package kafka

type ACKS int

const (
	ACKsAll    ACKS = -1
	ACKsLeader ACKS = 1
	ACKsNone   ACKS = 0
)

func IsNotValidACKs(acks ACKS) bool {
	return acks != ACKsAll &&
		acks != ACKsLeader &&
		acks != ACKsNone
}
