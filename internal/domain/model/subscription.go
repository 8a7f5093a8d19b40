package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"telegram-private-group/internal/domain"
)

// State is the membership lifecycle position of a subscription. A removed
// subscription has no row, so it has no State value.
type State string

const (
	StatePendingAdmission State = "PENDING_ADMISSION"
	StateAdmitted         State = "ADMITTED"
	StatePendingRemoval   State = "PENDING_REMOVAL"
)

// Subscription grants one customer access to the private group until EndAt.
type Subscription struct {
	ID         string // ULID
	CustomerID int64  // chat id of the customer
	Customer   *TelegramUser
	Plan       Plan
	TxHash     string
	StartAt    time.Time
	EndAt      time.Time
	// Renewal is set when this record replaced an earlier subscription of the same customer.
	Renewal bool
}

// NewSubscription computes EndAt from the plan at construction time; later
// catalog changes never touch existing records.
func NewSubscription(customerID int64, plan *Plan, txHash string, start time.Time) (*Subscription, error) {
	if plan.IsZero() {
		return nil, domain.ErrPlanRequired
	}
	txHash = strings.TrimSpace(txHash)
	if customerID == 0 || txHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	if start.IsZero() {
		start = time.Now()
	}
	return &Subscription{
		ID:         ulid.Make().String(),
		CustomerID: customerID,
		Plan:       *plan,
		TxHash:     txHash,
		StartAt:    start,
		EndAt:      start.Add(plan.Duration()),
	}, nil
}

// Expired reports end <= now.
func (s *Subscription) Expired(now time.Time) bool { return !s.EndAt.After(now) }

// Remaining is the time left until EndAt; negative once expired.
func (s *Subscription) Remaining(now time.Time) time.Duration { return s.EndAt.Sub(now) }

func (s *Subscription) State(inPrivateGroup bool, now time.Time) State {
	switch {
	case s.Expired(now):
		return StatePendingRemoval
	case inPrivateGroup:
		return StateAdmitted
	default:
		return StatePendingAdmission
	}
}

func (s *Subscription) IsZero() bool { return s == nil || s.ID == "" }

// SubscriptionView is the read model handed to API callers.
type SubscriptionView struct {
	Username        string `json:"username"`
	Plan            string `json:"plan"`
	Price           int64  `json:"price"`
	TransactionHash string `json:"transaction_hash"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	State           State  `json:"state"`
}

// DateLayout renders timestamps as DD/MM/YYYY HH:MM:SS.
const DateLayout = "02/01/2006 15:04:05"

func NewSubscriptionView(s *Subscription, u *TelegramUser, loc *time.Location, now time.Time) SubscriptionView {
	if loc == nil {
		loc = time.UTC
	}
	return SubscriptionView{
		Username:        u.Username,
		Plan:            s.Plan.Period.String(),
		Price:           s.Plan.Price,
		TransactionHash: s.TxHash,
		StartDate:       s.StartAt.In(loc).Format(DateLayout),
		EndDate:         s.EndAt.In(loc).Format(DateLayout),
		State:           s.State(u.InPrivateGroup, now),
	}
}
