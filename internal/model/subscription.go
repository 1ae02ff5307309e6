package model

// Subscription is the activation record for a (user, agent) pair.
type Subscription struct {
	ID          *int64     `json:"id,omitempty"`
	AgentID     int64      `json:"agent_id"`
	UserID      int64      `json:"user_id"`
	Activation  bool       `json:"activation"`
	Status      *string    `json:"status,omitempty"`
	YearlyStart *Timestamp `json:"yearly_start,omitempty"`
	YearlyEnd   *Timestamp `json:"yearly_end,omitempty"`
	Email       *string    `json:"email,omitempty"`
	CreatedAt   *Timestamp `json:"created_at,omitempty"`
	UpdatedAt   *Timestamp `json:"updated_at,omitempty"`
}

// SubscriptionRow is the flattened user + subscription view consumed by
// listings and editors. It is derived and never written back as a whole.
type SubscriptionRow struct {
	UserID            int64  `json:"user_id"`
	UserName          string `json:"user_name"`
	UserIdentificator string `json:"user_identificator"`
	Email             string `json:"email"`
	SubscriptionID    *int64 `json:"subscription_id,omitempty"`
	AgentID           int64  `json:"agent_id"`
	Activation        bool   `json:"activation"`
	Status            string `json:"status"`
	YearlyStart       string `json:"yearly_start"`
	YearlyEnd         string `json:"yearly_end"`
	LastInteraction   string `json:"last_interaction,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}
