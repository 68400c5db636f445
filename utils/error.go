package utils

import (
	"errors"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// RecordNotFound maps gorm's not-found error onto ErrorRecordNotFound.
func RecordNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorRecordNotFound
	}
	return err
}
