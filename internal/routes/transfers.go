package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/transfer"
)

// RegisterTransferRoutes wires transaction endpoints. idempotency guards
// creation when Redis is available.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler, idempotency fiber.Handler) {
    g := r.Group("/transactions")
    if idempotency != nil {
        g.Post("", idempotency, h.Create)
    } else {
        g.Post("", h.Create)
    }
    g.Get("", h.List)
    g.Get("/internal", h.Internal)
    g.Get("/balances", h.Balances)
    g.Get("/admin/all", h.ListAll)
    g.Get("/balance/:cardId", h.Balance)
    g.Get("/card/:cardId", h.ForCard)
    g.Get("/between/:cardA/:cardB", h.Between)
    g.Get("/:transactionId", h.Get)
}
