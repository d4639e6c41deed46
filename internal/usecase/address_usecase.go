package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"
)

type AddressDTO struct {
	ID         int64  `json:"id"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"is_default"`
	CreatedAt  string `json:"created_at"`
}

type AddressCreateInput struct {
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"is_default"`
}

// チェックアウトで使う配送先の管理
type AddressUsecase struct {
	addresses repo.AddressRepository
	now       func() time.Time
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, now: time.Now}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errDB()
	}

	out := make([]AddressDTO, 0, len(list))
	for _, a := range list {
		out = append(out, toAddressDTO(a))
	}
	return out, nil
}

// 最初の住所は自動でデフォルト
func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressCreateInput) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, errUnauthorized()
	}

	in = trimAddressInput(in)
	if in.PostalCode == "" || in.Prefecture == "" || in.City == "" || in.Line1 == "" || in.Name == "" {
		return AddressDTO{}, errValidation("postal_code, prefecture, city, line1 and name are required")
	}

	existing, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return AddressDTO{}, errDB()
	}

	now := u.now()
	created, err := u.addresses.Create(ctx, model.Address{
		UserID:     userID,
		PostalCode: in.PostalCode,
		Prefecture: in.Prefecture,
		City:       in.City,
		Line1:      in.Line1,
		Line2:      in.Line2,
		Name:       in.Name,
		Phone:      in.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return AddressDTO{}, errDB()
	}

	if in.IsDefault || len(existing) == 0 {
		if err := u.addresses.SetDefault(ctx, userID, created.ID); err != nil {
			return AddressDTO{}, errDB()
		}
		created.IsDefault = true
	}

	return toAddressDTO(created), nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return errUnauthorized()
	}
	if addressID <= 0 {
		return errValidation("invalid id")
	}

	//所有チェック（本人のみ）
	a, err := u.addresses.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("address")
		}
		return errDB()
	}
	if a.UserID != userID {
		return errForbidden()
	}

	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("address")
		}
		return errDB()
	}
	return nil
}

func trimAddressInput(in AddressCreateInput) AddressCreateInput {
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Prefecture = strings.TrimSpace(in.Prefecture)
	in.City = strings.TrimSpace(in.City)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.Line2 = strings.TrimSpace(in.Line2)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func toAddressDTO(a model.Address) AddressDTO {
	return AddressDTO{
		ID:         a.ID,
		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		Name:       a.Name,
		Phone:      a.Phone,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}
