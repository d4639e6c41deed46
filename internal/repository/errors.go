package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反、または条件付き更新で0件だったとき
	ErrConflict = errors.New("conflict")
)
