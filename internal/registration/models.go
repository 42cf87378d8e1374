// Package registration holds the biodata snapshot captured at submission
// time. The snapshot is the fallback source of truth for receipts: it is
// written by the applicant's own submission, before the payment-provider
// redirect, and is never mutated afterwards.
package registration

import "time"

// Snapshot is the registration form data keyed by payment reference.
type Snapshot struct {
	FirstName           string    `json:"firstName"`
	Surname             string    `json:"surname"`
	Sex                 string    `json:"sex"`
	DateOfBirth         string    `json:"dateOfBirth"`
	Age                 int       `json:"age"`
	StateOfResidence    string    `json:"stateOfResidence"`
	StateOfOrigin       string    `json:"stateOfOrigin"`
	PositionOfPlay      string    `json:"positionOfPlay"`
	GuardianFullName    string    `json:"guardianFullName"`
	GuardianPhoneNumber string    `json:"guardianPhoneNumber"`
	Email               string    `json:"email"`
	Reference           string    `json:"reference"`
	RegistrationID      string    `json:"registrationId"`
	CapturedAt          time.Time `json:"capturedAt"`
}

// FullName joins the applicant's first name and surname for display.
func (s Snapshot) FullName() string {
	switch {
	case s.FirstName == "":
		return s.Surname
	case s.Surname == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.Surname
	}
}
