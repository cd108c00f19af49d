package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/card"
)

// RegisterCardRoutes wires card endpoints. Fixed paths precede :cardId.
func RegisterCardRoutes(r fiber.Router, h *card.Handler) {
    g := r.Group("/cards")
    g.Post("", h.Create)
    g.Get("", h.List)
    g.Get("/summary", h.Summary)
    g.Get("/active", h.Active)
    g.Get("/search", h.Search)
    g.Get("/admin/all", h.ListAll)
    g.Get("/:cardId", h.Get)
    g.Put("/:cardId", h.Update)
    g.Delete("/:cardId", h.Delete)
    g.Post("/:cardId/block", h.Block)
    g.Post("/:cardId/unblock", h.Unblock)
}
