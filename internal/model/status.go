package model

// Status is the closed vocabulary for normalized authorisation statuses.
type Status string

const (
	StatusApproved                 Status = "APPROVED"
	StatusRejected                 Status = "REJECTED"
	StatusWithdrawn                Status = "WITHDRAWN"
	StatusSuspended                Status = "SUSPENDED"
	StatusConditionalApproval      Status = "CONDITIONAL_APPROVAL"
	StatusExceptionalCircumstances Status = "EXCEPTIONAL_CIRCUMSTANCES"
	StatusUnknown                  Status = "UNKNOWN"
)
