package usecase

import (
	"context"
	"errors"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"
)

// /cart の業務ロジック。
// 在庫はここでは減らさない（引当はチェックアウトでだけ行う）
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	now          func() time.Time
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		now:          time.Now,
	}
}

// price は unit_price_snapshot（追加時点の価格）
type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// 無ければACTIVEを作って空を返す
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, errDB()
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// 同一商品は数量加算。合計が在庫を超えるなら拒否
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, errValidation("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, errValidation("invalid quantity")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, errDB()
	}

	p, err := u.sellableProduct(ctx, in.ProductID)
	if err != nil {
		return CartResponse{}, err
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, errDB()
	}
	if quantityInCart(items, in.ProductID)+in.Quantity > p.Stock {
		return CartResponse{}, errValidation("stock exceeded")
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity, p.Price); err != nil {
		return CartResponse{}, errDB()
	}
	return u.buildCartResponse(ctx, cart.ID)
}

func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return CartResponse{}, errValidation("invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, errValidation("invalid quantity")
	}

	item, err := u.ownedCartItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	p, err := u.sellableProduct(ctx, item.ProductID)
	if err != nil {
		return CartResponse{}, err
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, errValidation("stock exceeded")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		return CartResponse{}, cartItemWriteError(err)
	}
	return u.buildCartResponse(ctx, item.CartID)
}

func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return CartResponse{}, errValidation("invalid id")
	}

	item, err := u.ownedCartItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		return CartResponse{}, cartItemWriteError(err)
	}
	return u.buildCartResponse(ctx, item.CartID)
}

// 現在のカートの値コピー（読み取り専用）
func (u *CartUsecase) Snapshot(ctx context.Context, userID int64) (model.CartSnapshot, error) {
	if userID <= 0 {
		return model.CartSnapshot{}, errUnauthorized()
	}

	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartSnapshot{}, errEmptyCart()
	}
	if err != nil {
		return model.CartSnapshot{}, errDB()
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.CartSnapshot{}, errDB()
	}

	snap := model.NewCartSnapshot(cart, items, u.productNames(ctx, items), u.now())
	if snap.IsEmpty() {
		return model.CartSnapshot{}, errEmptyCart()
	}
	return snap, nil
}

// チェックアウトのトランザクション内で使う。カート行をFOR UPDATEで読むので
// 並行するカート編集はチェックアウトの後ろに並ぶ
func takeCartSnapshot(ctx context.Context, r repo.TxRepos, userID int64, at time.Time) (model.CartSnapshot, error) {
	cart, err := r.Carts().FindActiveByUserIDForUpdate(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartSnapshot{}, errEmptyCart()
	}
	if err != nil {
		return model.CartSnapshot{}, errDB()
	}

	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.CartSnapshot{}, errDB()
	}
	if len(items) == 0 {
		return model.CartSnapshot{}, errEmptyCart()
	}

	names := make(map[int64]string, len(items))
	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.CartSnapshot{}, errDB()
		}
		names[it.ProductID] = p.Name
	}
	return model.NewCartSnapshot(cart, items, names, at), nil
}

// 公開中の商品だけカートに入れられる
func (u *CartUsecase) sellableProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errValidation("product not available")
	}
	if err != nil {
		return model.Product{}, errDB()
	}
	if !p.IsActive {
		return model.Product{}, errValidation("product not available")
	}
	return p, nil
}

// 他人の明細は存在しない扱い（404）
func (u *CartUsecase) ownedCartItem(ctx context.Context, userID int64, cartItemID int64) (model.CartItem, error) {
	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return model.CartItem{}, errDB()
	}
	if !owned {
		return model.CartItem{}, errNotFound("cart item")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if err != nil {
		return model.CartItem{}, cartItemWriteError(err)
	}
	return item, nil
}

func (u *CartUsecase) productNames(ctx context.Context, items []model.CartItem) map[int64]string {
	names := make(map[int64]string, len(items))
	for _, it := range items {
		if p, err := u.productRepo.FindByID(ctx, it.ProductID); err == nil {
			names[it.ProductID] = p.Name
		}
	}
	return names
}

// 非公開になった商品は表示と合計から外す
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, errDB()
	}

	resp := CartResponse{Items: make([]CartItemResponse, 0, len(items))}
	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil || !p.IsActive {
			continue
		}
		resp.Items = append(resp.Items, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
		resp.Total += it.UnitPriceSnapshot * it.Quantity
	}
	return resp, nil
}

func quantityInCart(items []model.CartItem, productID int64) int64 {
	for _, it := range items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

func cartItemWriteError(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound("cart item")
	}
	return errDB()
}
