package models

// DelegationStatus is the departure state of a whole delegation.
type DelegationStatus string

const (
	StatusNotDeparted       DelegationStatus = "NOT_DEPARTED"
	StatusPartiallyDeparted DelegationStatus = "PARTIALLY_DEPARTED"
	StatusFullyDeparted     DelegationStatus = "FULLY_DEPARTED"
)

// DeriveDelegationStatus classifies a delegation from its member count and
// how many of those members have departed.
func DeriveDelegationStatus(total, departed int) DelegationStatus {
	switch {
	case departed <= 0:
		return StatusNotDeparted
	case departed < total:
		return StatusPartiallyDeparted
	default:
		return StatusFullyDeparted
	}
}

// MemberStatus is the departure state of a single member.
type MemberStatus string

const (
	MemberNotDeparted MemberStatus = "NOT_DEPARTED"
	MemberDeparted    MemberStatus = "DEPARTED"
)

type DelegationType string

const (
	TypeMilitary DelegationType = "MILITARY"
	TypeCivilian DelegationType = "CIVILIAN"
)

func (t DelegationType) Valid() bool {
	return t == TypeMilitary || t == TypeCivilian
}
