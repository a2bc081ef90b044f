package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-service/cart"
	apperrors "pos-service/common/errors"
	"pos-service/middleware"
	"pos-service/models"
	"pos-service/services"
	"pos-service/session"
)

// POSController exposes the checkout engine to the register terminals.
type POSController struct {
	manager   *session.Manager
	catalog   services.Catalog
	inventory services.Inventory
	resolver  *services.PrescriptionResolver
	checkout  *services.CheckoutService
	log       *zap.Logger
}

func NewPOSController(manager *session.Manager, catalog services.Catalog, inventory services.Inventory, resolver *services.PrescriptionResolver, checkout *services.CheckoutService, log *zap.Logger) *POSController {
	return &POSController{
		manager:   manager,
		catalog:   catalog,
		inventory: inventory,
		resolver:  resolver,
		checkout:  checkout,
		log:       log,
	}
}

func (pc *POSController) session(c *gin.Context) *session.Session {
	return pc.manager.Session(middleware.OrgFrom(c).RegisterID)
}

func reservationContext(org models.OrgContext, patientID string) models.ReservationContext {
	return models.ReservationContext{
		CompanyID:  org.CompanyID,
		LocationID: org.LocationID,
		PatientID:  patientID,
	}
}

// GetCart returns the register's current lines and derived totals, plus any
// prescription-import report still awaiting the clerk's attention.
func (pc *POSController) GetCart(c *gin.Context) {
	sess := pc.session(c)
	lines, totals := sess.Store.Snapshot()
	if lines == nil {
		lines = []models.CartLine{}
	}
	resp := gin.H{"lines": lines, "totals": totals}
	if report := sess.ImportReport(); report != "" {
		resp["import_report"] = report
	}
	c.JSON(http.StatusOK, resp)
}

type addLineRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	BatchID   string  `json:"batch_id"`
	Quantity  float64 `json:"quantity"`
	PatientID string  `json:"patient_id"`
}

// AddLine resolves the product, picks a batch, reserves stock and adds the
// line. A scan of an already-carted item merges into the existing line and
// extends its reservation. A failed reservation still adds the line,
// unbacked, so the clerk sees it; checkout revalidates.
func (pc *POSController) AddLine(c *gin.Context) {
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctx := c.Request.Context()
	org := middleware.OrgFrom(c)
	sess := pc.session(c)

	product, err := pc.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		pc.log.Error("product lookup failed", zap.String("product_id", req.ProductID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "product lookup failed"})
		return
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = pc.pickBatch(c, product)
	}

	qty := 1.0
	if req.Quantity != 0 {
		qty = req.Quantity
	}
	line := models.CartLine{
		ProductID:      product.ID,
		BatchID:        batchID,
		DisplayName:    product.Name,
		SKU:            product.SKU,
		UnitPrice:      product.Price,
		Quantity:       normalizeQuantity(qty),
		TaxRatePercent: product.TaxRatePercent,
	}

	unbacked := false
	rctx := reservationContext(org, req.PatientID)

	// A duplicate scan merges, so the hold has to cover the combined
	// quantity: grow the existing reservation, or place a fresh one when an
	// earlier scan left the line unbacked.
	if existing, ok := findMergeTarget(sess, line); ok {
		combined := existing.Quantity + line.Quantity
		var res *models.Reservation
		var err error
		if existing.ReservationID != "" {
			res, err = pc.inventory.UpdateReservation(ctx, existing.ReservationID, combined)
		} else {
			res, err = pc.inventory.Reserve(ctx, rctx, line.ProductID, line.BatchID, combined)
		}
		if err != nil {
			var confErr *apperrors.ConfigurationError
			if errors.As(err, &confErr) {
				apperrors.Respond(c, err)
				return
			}
		}
		added := sess.Store.Add(line)
		if err != nil {
			pc.log.Warn("reservation for merged line failed, line is unbacked",
				zap.String("product_id", line.ProductID), zap.Error(err))
			if existing.ReservationID != "" {
				// The update failed, so the old hold's quantity is stale.
				go pc.inventory.Release(context.Background(), existing.ReservationID)
			}
			sess.Store.ClearReservation(added.ID)
			unbacked = true
		} else {
			expires := res.ExpiresAt
			sess.Store.SetReservation(added.ID, res.ReservationID, &expires)
		}
		pc.respondWithLine(c, sess, added.ID, unbacked)
		return
	}

	res, err := pc.inventory.Reserve(ctx, rctx, line.ProductID, line.BatchID, line.Quantity)
	if err != nil {
		var confErr *apperrors.ConfigurationError
		if errors.As(err, &confErr) {
			apperrors.Respond(c, err)
			return
		}
		pc.log.Warn("reservation failed, adding unbacked line",
			zap.String("product_id", line.ProductID), zap.Error(err))
		unbacked = true
	} else {
		line.ReservationID = res.ReservationID
		expires := res.ExpiresAt
		line.ReservationExpiresAt = &expires
	}

	added := sess.Store.Add(line)
	pc.respondWithLine(c, sess, added.ID, unbacked)
}

func (pc *POSController) respondWithLine(c *gin.Context, sess *session.Session, lineID string, unbacked bool) {
	lines, totals := sess.Store.Snapshot()
	var line models.CartLine
	for _, l := range lines {
		if l.ID == lineID {
			line = l
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"line": line, "totals": totals, "unbacked": unbacked})
}

// pickBatch chooses a batch when the terminal did not: the best live batch
// for multi-batch products, the default batch otherwise. A failed batch
// list degrades to the default batch.
func (pc *POSController) pickBatch(c *gin.Context, product *models.Product) string {
	if !product.HasMultipleBatches {
		return product.DefaultBatchID
	}
	batches, err := pc.catalog.GetBatches(c.Request.Context(), product.ID)
	if err != nil {
		pc.log.Warn("batch list failed, using default batch",
			zap.String("product_id", product.ID), zap.Error(err))
		return product.DefaultBatchID
	}
	if best := services.ChooseBestBatch(time.Now(), batches); best != nil {
		return best.ID
	}
	return product.DefaultBatchID
}

type updateLineRequest struct {
	Quantity       *float64 `json:"quantity"`
	DiscountAmount *float64 `json:"discount_amount"`
}

// UpdateLine patches quantity or discount. A quantity change updates the
// backing reservation in place; if that fails the line stays, unbacked.
func (pc *POSController) UpdateLine(c *gin.Context) {
	lineID := c.Param("id")
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	sess := pc.session(c)

	if req.Quantity != nil {
		if line, ok := findLine(sess, lineID); ok && line.ReservationID != "" {
			newQty := normalizeQuantity(*req.Quantity)
			res, err := pc.inventory.UpdateReservation(c.Request.Context(), line.ReservationID, newQty)
			if err != nil {
				pc.log.Warn("reservation update failed, line is unbacked",
					zap.String("line_id", lineID), zap.Error(err))
				// The hold's quantity is stale either way; let it go.
				go pc.inventory.Release(context.Background(), line.ReservationID)
				sess.Store.ClearReservation(lineID)
			} else {
				expires := res.ExpiresAt
				sess.Store.SetReservation(lineID, res.ReservationID, &expires)
			}
		}
	}

	if !sess.Store.Update(lineID, cartPatch(req)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "line not found"})
		return
	}

	lines, totals := sess.Store.Snapshot()
	c.JSON(http.StatusOK, gin.H{"lines": lines, "totals": totals})
}

// RemoveLine deletes a line; its reservation is released fire-and-forget.
func (pc *POSController) RemoveLine(c *gin.Context) {
	sess := pc.session(c)
	if !sess.Store.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "line not found"})
		return
	}
	lines, totals := sess.Store.Snapshot()
	c.JSON(http.StatusOK, gin.H{"lines": lines, "totals": totals})
}

// ClearCart empties the register's cart, releasing all reservations. The
// sale is abandoned, so pending import state goes with it.
func (pc *POSController) ClearCart(c *gin.Context) {
	sess := pc.session(c)
	sess.Store.Clear()
	sess.ClearImportState()
	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}

// Search runs the debounced typeahead product search. A superseded query
// returns an empty result, not an error.
func (pc *POSController) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"products": []models.Product{}})
		return
	}
	products, err := pc.session(c).Searcher.Search(c.Request.Context(), q)
	if err != nil {
		pc.log.Warn("product search failed", zap.String("q", q), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "search unavailable"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// ListBatches returns a product's batches plus the engine's pick.
func (pc *POSController) ListBatches(c *gin.Context) {
	productID := c.Param("id")
	batches, err := pc.catalog.GetBatches(c.Request.Context(), productID)
	if err != nil {
		pc.log.Warn("batch list failed", zap.String("product_id", productID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "batch list unavailable"})
		return
	}
	resp := gin.H{"batches": batches}
	if best := services.ChooseBestBatch(time.Now(), batches); best != nil {
		resp["best_batch_id"] = best.ID
	}
	c.JSON(http.StatusOK, resp)
}

type importRequest struct {
	PatientID string                    `json:"patient_id"`
	Lines     []models.PrescriptionLine `json:"lines" binding:"required"`
}

// ImportPrescription resolves and reserves a prescription batch into the
// cart. Partial failures never abort the batch; the aggregated report is
// returned once and held on the session for review.
func (pc *POSController) ImportPrescription(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	org := middleware.OrgFrom(c)
	sess := pc.session(c)

	var added []models.CartLine
	err := pc.resolver.ResolveAndReserve(c.Request.Context(), req.Lines, reservationContext(org, req.PatientID), func(line models.CartLine) {
		added = append(added, sess.Store.Add(line))
	})

	resp := gin.H{"added": added}
	if err != nil {
		var confErr *apperrors.ConfigurationError
		if errors.As(err, &confErr) {
			apperrors.Respond(c, err)
			return
		}
		sess.SetImportReport(err.Error())
		resp["report"] = err.Error()
	}
	_, totals := sess.Store.Snapshot()
	resp["totals"] = totals
	c.JSON(http.StatusOK, resp)
}

type checkoutRequest struct {
	PatientID string         `json:"patient_id"`
	Payment   models.Payment `json:"payment"`
}

// Checkout validates the cart against live stock and submits the order. A
// duplicate click with the same Idempotency-Key replays the original
// receipt.
func (pc *POSController) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	sess := pc.session(c)

	receipt, err := pc.checkout.Submit(c.Request.Context(), sess.Store, services.SubmitRequest{
		Org:            middleware.OrgFrom(c),
		PatientID:      req.PatientID,
		Payment:        req.Payment,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	sess.ClearImportState()
	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

func normalizeQuantity(qty float64) int {
	return cart.NormalizeQuantity(qty)
}

func cartPatch(req updateLineRequest) cart.LinePatch {
	return cart.LinePatch{
		Quantity:       req.Quantity,
		DiscountAmount: req.DiscountAmount,
	}
}

func findLine(sess *session.Session, id string) (models.CartLine, bool) {
	lines, _ := sess.Store.Snapshot()
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return models.CartLine{}, false
}

func findMergeTarget(sess *session.Session, line models.CartLine) (models.CartLine, bool) {
	lines, _ := sess.Store.Snapshot()
	key := line.Key()
	for _, l := range lines {
		if l.Key() == key {
			return l, true
		}
	}
	return models.CartLine{}, false
}
