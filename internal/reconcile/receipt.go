package reconcile

import (
	"strconv"
	"time"

	"regpay/internal/payment"
	"regpay/internal/registration"
)

// PendingDisclaimer is shown on receipts synthesized from the local snapshot
// when payment confirmation could not be fetched.
const PendingDisclaimer = "Payment confirmation is still pending. If you completed payment, your receipt will be available once the payment provider confirms the transaction."

// Receipt is the assembled, display-ready record for one payment reference.
// Transactional fields come from the verification response; personal fields
// prefer the registration snapshot over the backend echo. Immutable after
// assembly.
type Receipt struct {
	Reference   string         `json:"reference"`
	Status      payment.Status `json:"status"`
	StudentName string         `json:"studentName"`

	FirstName           string `json:"firstName,omitempty"`
	Surname             string `json:"surname,omitempty"`
	Sex                 string `json:"sex,omitempty"`
	DateOfBirth         string `json:"dateOfBirth,omitempty"`
	Age                 int    `json:"age,omitempty"`
	StateOfResidence    string `json:"stateOfResidence,omitempty"`
	StateOfOrigin       string `json:"stateOfOrigin,omitempty"`
	PositionOfPlay      string `json:"positionOfPlay,omitempty"`
	GuardianFullName    string `json:"guardianFullName,omitempty"`
	GuardianPhoneNumber string `json:"guardianPhoneNumber,omitempty"`
	Email               string `json:"email,omitempty"`

	AmountMinor   int64     `json:"amountMinor,omitempty"`
	AmountDisplay string    `json:"amountDisplay,omitempty"`
	PaidAt        time.Time `json:"paidAt,omitzero"`
	PaidAtRaw     string    `json:"paidAtRaw,omitempty"`

	Institution string `json:"institution"`
	EventName   string `json:"eventName"`

	FromCache  bool   `json:"fromCache"`
	Disclaimer string `json:"disclaimer,omitempty"`
}

// FormatAmountMinor renders a minor-unit amount as naira with kobo, grouping
// thousands: 500000 becomes "₦5,000.00".
func FormatAmountMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	major := minor / 100
	kobo := minor % 100

	digits := strconv.FormatInt(major, 10)
	grouped := make([]byte, 0, len(digits)+len(digits)/3)
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, d)
	}

	koboStr := strconv.FormatInt(kobo, 10)
	if kobo < 10 {
		koboStr = "0" + koboStr
	}
	return sign + "₦" + string(grouped) + "." + koboStr
}

// assembleReceipt builds the view model for a confirmed payment. The snapshot
// wins for personal fields when present; the verification echo fills gaps.
// FromCache stays false here: the flag marks synthesized receipts, not
// snapshot-sourced personal fields on a backend-confirmed one.
func assembleReceipt(verified *payment.VerifiedPayment, snap *registration.Snapshot, institution, eventName string) *Receipt {
	r := &Receipt{
		Reference:   verified.Reference,
		Status:      verified.Status,
		AmountMinor: verified.AmountMinor,
		PaidAt:      verified.PaidAt,
		PaidAtRaw:   verified.PaidAtRaw,
		Institution: institution,
		EventName:   eventName,
	}
	if verified.AmountMinor > 0 {
		r.AmountDisplay = FormatAmountMinor(verified.AmountMinor)
	}

	if snap != nil {
		r.FirstName = snap.FirstName
		r.Surname = snap.Surname
		r.Sex = snap.Sex
		r.DateOfBirth = snap.DateOfBirth
		r.Age = snap.Age
		r.StateOfResidence = snap.StateOfResidence
		r.StateOfOrigin = snap.StateOfOrigin
		r.PositionOfPlay = snap.PositionOfPlay
		r.GuardianFullName = snap.GuardianFullName
		r.GuardianPhoneNumber = snap.GuardianPhoneNumber
		r.Email = snap.Email
	}

	echo := verified.Biodata
	if r.FirstName == "" {
		r.FirstName = echo.FirstName
	}
	if r.Surname == "" {
		r.Surname = echo.Surname
	}
	if r.Sex == "" {
		r.Sex = echo.Sex
	}
	if r.DateOfBirth == "" {
		r.DateOfBirth = echo.DateOfBirth
	}
	if r.Age == 0 {
		r.Age = echo.Age
	}
	if r.StateOfOrigin == "" {
		r.StateOfOrigin = echo.StateOfOrigin
	}
	if r.PositionOfPlay == "" {
		r.PositionOfPlay = echo.PositionOfPlay
	}
	if r.GuardianFullName == "" {
		r.GuardianFullName = echo.GuardianFullName
	}
	if r.GuardianPhoneNumber == "" {
		r.GuardianPhoneNumber = echo.GuardianPhoneNumber
	}
	if r.Email == "" {
		r.Email = echo.Email
	}

	r.StudentName = joinName(r.FirstName, r.Surname)
	return r
}

// synthesizeReceipt builds a best-effort pending receipt from the snapshot
// alone, for when confirmation could not be fetched.
func synthesizeReceipt(snap *registration.Snapshot, institution, eventName string) *Receipt {
	return &Receipt{
		Reference:           snap.Reference,
		Status:              payment.StatusPending,
		StudentName:         snap.FullName(),
		FirstName:           snap.FirstName,
		Surname:             snap.Surname,
		Sex:                 snap.Sex,
		DateOfBirth:         snap.DateOfBirth,
		Age:                 snap.Age,
		StateOfResidence:    snap.StateOfResidence,
		StateOfOrigin:       snap.StateOfOrigin,
		PositionOfPlay:      snap.PositionOfPlay,
		GuardianFullName:    snap.GuardianFullName,
		GuardianPhoneNumber: snap.GuardianPhoneNumber,
		Email:               snap.Email,
		Institution:         institution,
		EventName:           eventName,
		FromCache:           true,
		Disclaimer:          PendingDisclaimer,
	}
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
