package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Custom database errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrForeignKey   = errors.New("foreign key constraint violation")
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate checks if error is a duplicate error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key constraint violation
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// MapGormError maps GORM and SQLite errors to the package's sentinel errors
func MapGormError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return ErrDuplicate
	case strings.Contains(msg, "foreign key constraint"):
		return ErrForeignKey
	}

	return err
}
