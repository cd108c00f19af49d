package transfer

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/bankcards/cardledger/internal/httpx"
	"github.com/bankcards/cardledger/internal/paging"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	FromCardID  string           `json:"from_card_id" validate:"required"`
	ToCardID    string           `json:"to_card_id" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"max=500"`
}

// Create moves funds between two of the caller's cards.
func (h *Handler) Create(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.Create(c.UserContext(), CreateInput{
		FromCardID:  req.FromCardID,
		ToCardID:    req.ToCardID,
		Amount:      *req.Amount,
		Description: req.Description,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(view)
}

// Get returns one transfer.
func (h *Handler) Get(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), c.Params("transactionId"), actor)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// List pages through every transfer touching the caller's cards.
func (h *Handler) List(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListForUser(c.UserContext(), actor, pageOf(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Internal pages through transfers between the caller's own cards.
func (h *Handler) Internal(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListInternal(c.UserContext(), actor, pageOf(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// ForCard pages through one card's history.
func (h *Handler) ForCard(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListForCard(c.UserContext(), c.Params("cardId"), actor, pageOf(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Between pages through transfers between two cards.
func (h *Handler) Between(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListBetween(c.UserContext(), c.Params("cardA"), c.Params("cardB"), actor, pageOf(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Balance reports one card's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	view, err := h.service.Balance(c.UserContext(), c.Params("cardId"), actor)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// Balances pages through the caller's card balances.
func (h *Handler) Balances(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListBalances(c.UserContext(), actor, pageOf(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// ListAll is the administrative listing. Query: status, user_id, from, to.
func (h *Handler) ListAll(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	filter := Filter{Status: Status(c.Query("status")), UserID: c.Query("user_id")}
	if filter.From, err = parseTime(c.Query("from"), false); err != nil {
		return err
	}
	if filter.To, err = parseTime(c.Query("to"), true); err != nil {
		return err
	}
	page, err := h.service.ListAll(c.UserContext(), actor, filter, pageOf(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func pageOf(c *fiber.Ctx) paging.Request {
	return paging.FromQuery(c.Query("page"), c.Query("size"))
}

// parseTime accepts RFC 3339 or a bare date. A bare upper bound covers the whole day.
func parseTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "invalid date "+raw+": use RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
