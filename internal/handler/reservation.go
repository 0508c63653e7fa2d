package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/marvelstay/room-reservation/internal/gateway"
    "github.com/marvelstay/room-reservation/internal/model"
    "github.com/marvelstay/room-reservation/internal/repository"
    "github.com/marvelstay/room-reservation/internal/service"
)

// ReservationService is the slice of the lifecycle engine the HTTP layer
// uses.
type ReservationService interface {
    Create(ctx context.Context, req service.CreateReservationRequest) (*model.Reservation, error)
    GetByID(ctx context.Context, id string) (*model.Reservation, error)
}

// ReservationHandler exposes reservation creation and lookup.  All methods
// assume JWT authentication has already been performed by middleware.
type ReservationHandler struct {
    Service ReservationService
}

// NewReservationHandler constructs a ReservationHandler.  The service must
// be non-nil.
func NewReservationHandler(svc ReservationService) *ReservationHandler {
    if svc == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Service: svc}
}

type createReservationReq struct {
    CustomerName     string `json:"customer_name"`
    RoomNumber       string `json:"room_number"`
    StartDate        string `json:"start_date"` // YYYY-MM-DD
    EndDate          string `json:"end_date"`   // YYYY-MM-DD
    Segment          string `json:"segment"`
    PaymentMode      string `json:"payment_mode"`
    PaymentReference string `json:"payment_reference"`
}

type reservationResp struct {
    ID               string  `json:"id"`
    CustomerName     string  `json:"customer_name"`
    RoomNumber       string  `json:"room_number"`
    StartDate        string  `json:"start_date"`
    EndDate          string  `json:"end_date"`
    Segment          string  `json:"segment"`
    PaymentMode      string  `json:"payment_mode"`
    PaymentReference *string `json:"payment_reference,omitempty"`
    Status           string  `json:"status"`
}

func toReservationResp(res *model.Reservation) reservationResp {
    return reservationResp{
        ID:               res.ID,
        CustomerName:     res.CustomerName,
        RoomNumber:       res.RoomNumber,
        StartDate:        res.StartDate.Format(time.DateOnly),
        EndDate:          res.EndDate.Format(time.DateOnly),
        Segment:          string(res.Segment),
        PaymentMode:      string(res.PaymentMode),
        PaymentReference: res.PaymentReference,
        Status:           string(res.Status),
    }
}

// Create handles POST /v1/reservations.  It validates field presence and
// shape, then delegates every business rule to the lifecycle engine and
// maps the engine's error taxonomy onto HTTP statuses: validation problems
// and rejected references are client errors, an unreachable gateway is 503
// with a retry hint.
func (h *ReservationHandler) Create(c echo.Context) error {
    var req createReservationReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    req.CustomerName = strings.TrimSpace(req.CustomerName)
    req.RoomNumber = strings.TrimSpace(req.RoomNumber)
    if req.CustomerName == "" || req.RoomNumber == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name and room_number are required"})
    }
    start, err := time.Parse(time.DateOnly, req.StartDate)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD"})
    }
    end, err := time.Parse(time.DateOnly, req.EndDate)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
    }
    segment := model.RoomSegment(strings.ToUpper(strings.TrimSpace(req.Segment)))
    if !model.ValidSegment(segment) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "segment must be BUDGET, MEDIUM or PREMIUM"})
    }
    mode := model.PaymentMode(strings.ToUpper(strings.TrimSpace(req.PaymentMode)))
    if !model.ValidMode(mode) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_mode must be CASH, CARD or BANK_TRANSFER"})
    }

    res, err := h.Service.Create(c.Request().Context(), service.CreateReservationRequest{
        CustomerName:     req.CustomerName,
        RoomNumber:       req.RoomNumber,
        StartDate:        start,
        EndDate:          end,
        Segment:          segment,
        PaymentMode:      mode,
        PaymentReference: req.PaymentReference,
    })
    if err != nil {
        return reservationError(c, err)
    }
    return c.JSON(http.StatusCreated, toReservationResp(res))
}

// GetByID handles GET /v1/reservations/:id.
func (h *ReservationHandler) GetByID(c echo.Context) error {
    id := strings.TrimSpace(c.Param("id"))
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    res, err := h.Service.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// reservationError maps engine failures to HTTP responses.
func reservationError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrInvalidDateRange),
        errors.Is(err, service.ErrMissingPaymentReference):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrPaymentRejected):
        return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment rejected"})
    case errors.Is(err, gateway.ErrRejected):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment reference rejected by provider"})
    case errors.Is(err, gateway.ErrUnavailable):
        c.Response().Header().Set("Retry-After", "30")
        return c.JSON(http.StatusServiceUnavailable, echo.Map{
            "error":       "payment service temporarily unavailable",
            "retry_after": 30,
        })
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
