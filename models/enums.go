package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusAccepted TransactionStatus = "accepted"
	TransactionStatusRejected TransactionStatus = "rejected"
)

func (t TransactionStatus) IsValid() bool {
	switch t {
	case TransactionStatusPending, TransactionStatusAccepted, TransactionStatusRejected:
		return true
	}
	return false
}

func (t TransactionStatus) String() string {
	return string(t)
}

func (s *TransactionStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*s = TransactionStatus(v)
	case string:
		*s = TransactionStatus(v)
	default:
		return errors.New("type assertion to []byte or string failed")
	}
	if !s.IsValid() {
		return fmt.Errorf("%s is not a valid TransactionStatus", string(*s))
	}
	return nil
}

func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// InsertOutcome reports what an insert-if-absent did.
type InsertOutcome int

const (
	InsertOutcomeInserted InsertOutcome = iota + 1
	InsertOutcomeAlreadyPresent
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertOutcomeInserted:
		return "inserted"
	case InsertOutcomeAlreadyPresent:
		return "already_present"
	}
	return fmt.Sprintf("InsertOutcome(%d)", int(o))
}
