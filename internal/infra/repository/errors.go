package repository

import (
	"errors"

	repo "checkout/internal/repository"

	"gorm.io/gorm"
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// gorm.Config{TranslateError: true} 前提で一意制約違反を ErrConflict にする
func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrConflict
	}
	return err
}
