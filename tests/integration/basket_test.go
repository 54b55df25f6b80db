//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity,omitempty"`
}

func TestBasket_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/basket")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestBasket_WrongToken(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/basket", nil, "not-a-real-token")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestBasket_AddAndQuote(t *testing.T) {
	clearBasket(t)
	products := productsBySlug(t)

	// 2 truffle boxes at 12.50 plus 1 milk bar at its discount price 3.50.
	resp := doPostAuth(t, "/api/basket/items", addItemRequest{
		ProductID: products["dark-chocolate-truffles"].ID,
		Quantity:  2,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add item: expected 204, got %d", resp.StatusCode)
	}

	resp = doPostAuth(t, "/api/basket/items", addItemRequest{
		ProductID: products["milk-chocolate-bar"].ID,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add item: expected 204, got %d", resp.StatusCode)
	}

	resp = doGetAuth(t, "/api/basket")
	defer resp.Body.Close()
	receipt := decodeJSON[receiptResponse](t, resp)

	if receipt.TotalSum != "28.50" {
		t.Errorf("total: got %q, want 28.50", receipt.TotalSum)
	}
	if len(receipt.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(receipt.Items))
	}
}

func TestBasket_RepeatAddIncrements(t *testing.T) {
	clearBasket(t)
	tin := productsBySlug(t)["drinking-chocolate-tin"]

	for range 3 {
		resp := doPostAuth(t, "/api/basket/items", addItemRequest{ProductID: tin.ID})
		resp.Body.Close()
	}

	resp := doGetAuth(t, "/api/basket")
	defer resp.Body.Close()
	receipt := decodeJSON[receiptResponse](t, resp)

	if len(receipt.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(receipt.Items))
	}
	if receipt.Items[0].Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", receipt.Items[0].Quantity)
	}
	if receipt.TotalSum != "29.40" {
		t.Errorf("total: got %q, want 29.40", receipt.TotalSum)
	}
}

func TestBasket_SetQuantityToZero(t *testing.T) {
	clearBasket(t)
	thins := productsBySlug(t)["sea-salt-caramel-thins"]

	resp := doPostAuth(t, "/api/basket/items", addItemRequest{ProductID: thins.ID, Quantity: 2})
	resp.Body.Close()

	resp = do(t, http.MethodPut, fmt.Sprintf("/api/basket/items/%d", thins.ID),
		map[string]int{"quantity": 0}, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set quantity: expected 204, got %d", resp.StatusCode)
	}

	// The item stays in the basket but contributes nothing.
	resp = doGetAuth(t, "/api/basket")
	defer resp.Body.Close()
	receipt := decodeJSON[receiptResponse](t, resp)

	if len(receipt.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(receipt.Items))
	}
	if receipt.TotalSum != "0.00" {
		t.Errorf("total: got %q, want 0.00", receipt.TotalSum)
	}
}

func TestBasket_PromoQuote(t *testing.T) {
	clearBasket(t)
	products := productsBySlug(t)

	// Full-price truffles get the 10% promo; the discounted raspberry bar
	// keeps its own price.
	resp := doPostAuth(t, "/api/basket/items", addItemRequest{
		ProductID: products["dark-chocolate-truffles"].ID,
	})
	resp.Body.Close()
	resp = doPostAuth(t, "/api/basket/items", addItemRequest{
		ProductID: products["white-chocolate-raspberry-bar"].ID,
	})
	resp.Body.Close()

	resp = doGetAuth(t, "/api/basket?promo_code=WELCOME10")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	receipt := decodeJSON[receiptResponse](t, resp)
	// 12.50 * 0.90 + 4.90 = 16.15
	if receipt.TotalSum != "16.15" {
		t.Errorf("total: got %q, want 16.15", receipt.TotalSum)
	}
}

func TestBasket_ExpiredPromo(t *testing.T) {
	clearBasket(t)
	tin := productsBySlug(t)["drinking-chocolate-tin"]

	resp := doPostAuth(t, "/api/basket/items", addItemRequest{ProductID: tin.ID})
	resp.Body.Close()

	resp = doGetAuth(t, "/api/basket?promo_code=BYGONE")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestBasket_UnknownPromo(t *testing.T) {
	resp := doGetAuth(t, "/api/basket?promo_code=NOSUCHCODE")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestBasket_AddUnknownProduct(t *testing.T) {
	resp := doPostAuth(t, "/api/basket/items", addItemRequest{ProductID: 99999})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
