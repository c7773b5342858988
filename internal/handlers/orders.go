package handlers

import (
	"net/http"
	"strconv"

	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

// CreateOrderRequest is the body of POST /api/orders
type CreateOrderRequest struct {
	OrderNumber  string `json:"order_number"`
	CustomerName string `json:"customer_name"`
	Title        string `json:"title"`
	Brief        string `json:"brief"`
}

// AssignRequest is the body of POST /api/orders/{id}/assign. An empty worker unassigns.
type AssignRequest struct {
	Worker string `json:"worker"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type deliverableRequest struct {
	URL string `json:"url"`
}

func (r *Router) listOrders(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := assignment.OrderFilter{
		Worker: q.Get("worker"),
		Status: models.OrderStatus(q.Get("status")),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	orders, err := r.deps.Coordinator.ListOrders(req.Context(), filter)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (r *Router) createOrder(w http.ResponseWriter, req *http.Request) {
	var body CreateOrderRequest
	if err := decode(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	order, err := r.deps.Coordinator.CreateOrder(req.Context(), actor(req), &models.VideoOrder{
		OrderNumber:  body.OrderNumber,
		CustomerName: body.CustomerName,
		Title:        body.Title,
		Brief:        body.Brief,
	})
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	order, err := r.deps.Coordinator.GetOrder(req.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (r *Router) deleteOrder(w http.ResponseWriter, req *http.Request) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	if err := r.deps.Coordinator.SoftDelete(req.Context(), actor(req), id); err != nil {
		respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) assignOrder(w http.ResponseWriter, req *http.Request) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	var body AssignRequest
	if err := decode(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	order, err := r.deps.Coordinator.Assign(req.Context(), actor(req), id, body.Worker)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (r *Router) unassignOrder(w http.ResponseWriter, req *http.Request) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	order, err := r.deps.Coordinator.Unassign(req.Context(), actor(req), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (r *Router) updateStatus(w http.ResponseWriter, req *http.Request) {
	r.withStatus(w, req, func(id uint, value string) (*models.VideoOrder, error) {
		return r.deps.Coordinator.UpdateStatus(req.Context(), actor(req), id, models.OrderStatus(value))
	})
}

func (r *Router) updateDelivery(w http.ResponseWriter, req *http.Request) {
	r.withStatus(w, req, func(id uint, value string) (*models.VideoOrder, error) {
		return r.deps.Coordinator.UpdateDelivery(req.Context(), actor(req), id, models.DeliveryStatus(value))
	})
}

func (r *Router) updatePayment(w http.ResponseWriter, req *http.Request) {
	r.withStatus(w, req, func(id uint, value string) (*models.VideoOrder, error) {
		return r.deps.Coordinator.UpdatePayment(req.Context(), actor(req), id, models.PaymentStatus(value))
	})
}

func (r *Router) setDeliverable(w http.ResponseWriter, req *http.Request) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	var body deliverableRequest
	if err := decode(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	order, err := r.deps.Coordinator.SetDeliverable(req.Context(), actor(req), id, body.URL)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// withStatus decodes {"status": ...} for the three status axes
func (r *Router) withStatus(w http.ResponseWriter, req *http.Request, apply func(id uint, value string) (*models.VideoOrder, error)) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	var body statusRequest
	if err := decode(req, &body); err != nil || body.Status == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	order, err := apply(id, body.Status)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
