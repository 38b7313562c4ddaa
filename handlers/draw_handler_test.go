package handlers

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawHandler_Draw_Unauthorized(t *testing.T) {
	api := setupTestAPI(t)
	handler := NewDrawHandler(api.draw)

	c, rec := newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{"draw_count":1}`, "")

	require.NoError(t, handler.Draw(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDrawHandler_Draw_Success(t *testing.T) {
	api := setupTestAPI(t)
	queueHandler := NewQueueHandler(api.queue)
	handler := NewDrawHandler(api.draw)

	c, _ := newTestContext(http.MethodPost, "/api/campaigns/camp-1/queue/join", "", "user-1")
	require.NoError(t, queueHandler.Join(c))

	c, rec := newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{"ticket_numbers":[2,9]}`, "user-1")
	require.NoError(t, handler.Draw(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	allocations, ok := body["allocations"].([]any)
	require.True(t, ok)
	assert.Len(t, allocations, 2)

	quote, ok := body["quote"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2000", quote["total_price"])
}

func TestDrawHandler_Draw_NotYourTurn(t *testing.T) {
	api := setupTestAPI(t)
	queueHandler := NewQueueHandler(api.queue)
	handler := NewDrawHandler(api.draw)

	c, _ := newTestContext(http.MethodPost, "/api/campaigns/camp-1/queue/join", "", "user-1")
	require.NoError(t, queueHandler.Join(c))
	c, _ = newTestContext(http.MethodPost, "/api/campaigns/camp-1/queue/join", "", "user-2")
	require.NoError(t, queueHandler.Join(c))

	c, rec := newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{"draw_count":1}`, "user-2")
	require.NoError(t, handler.Draw(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDrawHandler_Draw_InsufficientFunds(t *testing.T) {
	api := setupTestAPI(t)
	api.store.SeedWallet("user-1", decimal.NewFromInt(100))
	queueHandler := NewQueueHandler(api.queue)
	handler := NewDrawHandler(api.draw)

	c, _ := newTestContext(http.MethodPost, "/api/campaigns/camp-1/queue/join", "", "user-1")
	require.NoError(t, queueHandler.Join(c))

	c, rec := newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{"draw_count":2}`, "user-1")
	require.NoError(t, handler.Draw(c))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "2000", body["required"])
	assert.Equal(t, "100", body["available"])
}

func TestDrawHandler_Draw_EmptyRequest(t *testing.T) {
	api := setupTestAPI(t)
	queueHandler := NewQueueHandler(api.queue)
	handler := NewDrawHandler(api.draw)

	c, _ := newTestContext(http.MethodPost, "/api/campaigns/camp-1/queue/join", "", "user-1")
	require.NoError(t, queueHandler.Join(c))

	c, rec := newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{}`, "user-1")
	require.NoError(t, handler.Draw(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrawHandler_Draw_MalformedBody(t *testing.T) {
	api := setupTestAPI(t)
	handler := NewDrawHandler(api.draw)

	c, rec := newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{not json`, "user-1")

	require.NoError(t, handler.Draw(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrawHandler_PricePreview(t *testing.T) {
	api := setupTestAPI(t)
	handler := NewDrawHandler(api.draw)

	c, rec := newTestContext(http.MethodGet, "/api/campaigns/camp-1/price-preview?draws=7", "", "")
	require.NoError(t, handler.PricePreview(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// 7 draws = one 5-pack plus two singles.
	body := decodeBody(t, rec)
	assert.Equal(t, "6700", body["total_price"])
	assert.Equal(t, "7000", body["regular_price"])
	assert.Equal(t, "300", body["savings"])
}

func TestDrawHandler_PricePreview_BadParams(t *testing.T) {
	api := setupTestAPI(t)
	handler := NewDrawHandler(api.draw)

	for _, target := range []string{
		"/api/campaigns/camp-1/price-preview",
		"/api/campaigns/camp-1/price-preview?draws=abc",
		"/api/campaigns/camp-1/price-preview?draws=-1",
	} {
		c, rec := newTestContext(http.MethodGet, target, "", "")
		require.NoError(t, handler.PricePreview(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDrawHandler_PricePreview_TierNotFound(t *testing.T) {
	api := setupTestAPI(t)
	handler := NewDrawHandler(api.draw)

	c, rec := newTestContext(http.MethodGet, "/api/campaigns/camp-1/price-preview?tier_id=nope", "", "")
	require.NoError(t, handler.PricePreview(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrawHandler_Draw_PreviewMatchesCharge(t *testing.T) {
	api := setupTestAPI(t)
	queueHandler := NewQueueHandler(api.queue)
	handler := NewDrawHandler(api.draw)

	c, rec := newTestContext(http.MethodGet, "/api/campaigns/camp-1/price-preview?draws=5", "", "")
	require.NoError(t, handler.PricePreview(c))
	preview := decodeBody(t, rec)

	c, _ = newTestContext(http.MethodPost, "/api/campaigns/camp-1/queue/join", "", "user-1")
	require.NoError(t, queueHandler.Join(c))

	c, rec = newTestContext(http.MethodPost, "/api/campaigns/camp-1/draw", `{"draw_count":5}`, "user-1")
	require.NoError(t, handler.Draw(c))
	require.Equal(t, http.StatusOK, rec.Code)

	charged := decodeBody(t, rec)["quote"].(map[string]any)
	assert.Equal(t, preview["total_price"], charged["total_price"])
}
