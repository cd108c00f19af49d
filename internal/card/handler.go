package card

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bankcards/cardledger/internal/httpx"
	"github.com/bankcards/cardledger/internal/paging"
)

// Handler exposes card endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a card handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	CardNumber     string `json:"card_number" validate:"required,min=16,max=19"`
	CardholderName string `json:"cardholder_name" validate:"required,max=100"`
}

type updateRequest struct {
	CardholderName *string `json:"cardholder_name" validate:"omitempty,min=1,max=100"`
	Status         *Status `json:"status" validate:"omitempty,oneof=ACTIVE BLOCKED"`
}

// Create issues a card for the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.Create(c.UserContext(), CreateInput{Number: req.CardNumber, HolderName: req.CardholderName}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(view)
}

// Get returns one card.
func (h *Handler) Get(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), c.Params("cardId"), actor)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// List pages through the caller's cards.
func (h *Handler) List(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), actor, paging.FromQuery(c.Query("page"), c.Query("size")))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Active lists the caller's cards that can currently move funds.
func (h *Handler) Active(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListActive(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(views)
}

// Summary reports counts and the active balance of the caller's cards.
func (h *Handler) Summary(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	s, err := h.service.Summary(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(s)
}

// Update applies a partial change.
func (h *Handler) Update(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.Update(c.UserContext(), c.Params("cardId"), UpdateInput{
		HolderName: req.CardholderName,
		Status:     req.Status,
	}, actor)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// Block moves the card to BLOCKED.
func (h *Handler) Block(c *fiber.Ctx) error {
	return h.setBlocked(c, true)
}

// Unblock moves the card back to ACTIVE.
func (h *Handler) Unblock(c *fiber.Ctx) error {
	return h.setBlocked(c, false)
}

func (h *Handler) setBlocked(c *fiber.Ctx, blocked bool) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	view, err := h.service.SetBlocked(c.UserContext(), c.Params("cardId"), actor, blocked)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// Delete removes a card.
func (h *Handler) Delete(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), c.Params("cardId"), actor); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Search finds a card by its clear number. Admin only.
func (h *Handler) Search(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	number := c.Query("number")
	if number == "" {
		return fiber.NewError(http.StatusBadRequest, "number is required")
	}
	view, err := h.service.FindByNumber(c.UserContext(), number, actor)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// ListAll pages through every card. Admin only.
func (h *Handler) ListAll(c *fiber.Ctx) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	filter := Filter{Status: Status(c.Query("status")), OwnerID: c.Query("owner_id")}
	page, err := h.service.ListAll(c.UserContext(), actor, filter, paging.FromQuery(c.Query("page"), c.Query("size")))
	if err != nil {
		return err
	}
	return c.JSON(page)
}
