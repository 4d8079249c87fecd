package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newHandlerStore seeds a 3-stop route with one open 2-seat tour.
func newHandlerStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	store.SeedRoute(&domain.Route{
		ID: "route-1",
		Stops: []domain.Stop{
			{ID: "a", RouteID: "route-1", Order: 1, Name: "Vienna"},
			{ID: "b", RouteID: "route-1", Order: 2, Name: "Bratislava"},
			{ID: "c", RouteID: "route-1", Order: 3, Name: "Budapest"},
		},
	})
	tour := &domain.Tour{
		ID:          "tour-1",
		RouteID:     "route-1",
		PricelistID: "pl-1",
		SeatCount:   2,
		DepartsAt:   time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC),
	}
	store.SeedTour(tour, []*domain.Seat{
		{TourID: "tour-1", Number: 1, FreeSegments: domain.FullSegmentSet(3)},
		{TourID: "tour-1", Number: 2, FreeSegments: domain.FullSegmentSet(3)},
	})
	for _, pair := range []struct {
		dep, arr, fare string
	}{
		{"a", "b", "5.00"}, {"b", "c", "5.00"}, {"a", "c", "8.00"},
	} {
		store.SeedFare("pl-1", pair.dep, pair.arr, decimal.RequireFromString(pair.fare))
	}
	return store
}

func newBookingRouter(store *repository.MemoryStore) *gin.Engine {
	svc := service.NewBookingService(store, nil, nil, nil, nil)
	h := NewBookingHandler(svc)

	router := gin.New()
	router.POST("/bookings/quote", h.Quote)
	router.POST("/bookings", h.Book)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBookingHandler_Quote(t *testing.T) {
	router := newBookingRouter(newHandlerStore())

	rec := doJSON(t, router, http.MethodPost, "/bookings/quote", dto.QuoteRequest{
		TourID:    "tour-1",
		DepStopID: "a",
		ArrStopID: "c",
		Adults:    1,
		Discount:  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.QuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "8.00", resp.Fare)
	assert.Equal(t, "15.60", resp.Total)
}

func TestBookingHandler_QuoteUnknownTour(t *testing.T) {
	router := newBookingRouter(newHandlerStore())

	rec := doJSON(t, router, http.MethodPost, "/bookings/quote", dto.QuoteRequest{
		TourID:    "nope",
		DepStopID: "a",
		ArrStopID: "c",
		Adults:    1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestBookingHandler_Book(t *testing.T) {
	router := newBookingRouter(newHandlerStore())

	rec := doJSON(t, router, http.MethodPost, "/bookings", dto.BookRequest{
		TourID:    "tour-1",
		DepStopID: "a",
		ArrStopID: "c",
		Adults:    1,
		Seats:     []dto.SeatRequest{{SeatNumber: 1, Passenger: "Ada"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.BookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reserved", resp.PurchaseStatus)
	assert.Equal(t, "8.00", resp.Total)
	require.Len(t, resp.Tickets, 1)
	assert.NotEmpty(t, resp.PurchaseID)
	assert.NotEmpty(t, resp.Tickets[0].TicketID)
}

func TestBookingHandler_BookInvalidBody(t *testing.T) {
	router := newBookingRouter(newHandlerStore())

	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandler_BookConflict(t *testing.T) {
	store := newHandlerStore()
	router := newBookingRouter(store)

	book := dto.BookRequest{
		TourID:    "tour-1",
		DepStopID: "a",
		ArrStopID: "c",
		Adults:    1,
		Seats:     []dto.SeatRequest{{SeatNumber: 1, Passenger: "Ada"}},
	}
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/bookings", book).Code)

	rec := doJSON(t, router, http.MethodPost, "/bookings", book)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CONFLICT", resp.Code)
}
