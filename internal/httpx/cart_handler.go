package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	Service  *checkout.CartService
	Products checkout.ProductStore
}

type cartItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type cartResp struct {
	CartID string              `json:"cart_id"`
	Items  []checkout.CartItem `json:"items"`
	Total  decimal.Decimal     `json:"total_price"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clear)
		r.Get("/stock", h.checkStock)
		r.Post("/items", h.addItem)
		r.Patch("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
	})
	r.Get("/products", h.listProducts)
}

func (h *CartHandler) cart(w http.ResponseWriter, r *http.Request) (context.Context, checkout.Cart, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	cart, err := h.Service.GetOrCreate(ctx, identity(w, r))
	return ctx, cart, cancel, err
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cart, cancel, err := h.cart(w, r)
	defer cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.Service.Carts.Items(ctx, cart.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.Service.TotalPrice(ctx, cart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{CartID: cart.ID, Items: items, Total: total})
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cart, cancel, err := h.cart(w, r)
	defer cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	item, err := h.Service.AddItem(ctx, cart, req.ProductID, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cart, cancel, err := h.cart(w, r)
	defer cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	item, err := h.Service.UpdateItem(ctx, cart, chi.URLParam(r, "productID"), req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Qty == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cart, cancel, err := h.cart(w, r)
	defer cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.RemoveItem(ctx, cart, chi.URLParam(r, "productID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cart, cancel, err := h.cart(w, r)
	defer cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.Clear(ctx, cart); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) checkStock(w http.ResponseWriter, r *http.Request) {
	ctx, cart, cancel, err := h.cart(w, r)
	defer cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := h.Service.CheckStock(ctx, cart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"in_stock": ok})
}

func (h *CartHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	ps, err := h.Products.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
