// Package httpapi exposes product storage and batch enrichment over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/pipeline"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/palantir/product-attribute-enrichment/internal/version"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/redact"
	"go.uber.org/zap"
)

// ProductStore is the storage the handlers need.
type ProductStore interface {
	Insert(ctx context.Context, owner string, p product.Product) (string, error)
	Find(ctx context.Context, owner string) ([]product.Product, error)
	DeleteMany(ctx context.Context, ids []string, owner string) (int64, error)
}

// BatchEnricher runs enrichment over a batch on behalf of an owner.
type BatchEnricher interface {
	EnrichBatch(ctx context.Context, owner string, products []product.Product) (pipeline.BatchReport, error)
}

type Handler struct {
	store    ProductStore
	enricher BatchEnricher
	logger   *zap.Logger
}

func NewHandler(store ProductStore, enricher BatchEnricher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, enricher: enricher, logger: logger}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to AI Attribute Enricher."})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "product-attribute-enrichment",
		"version": version.Current,
	})
}

type createProductRequest struct {
	Name       string               `json:"product_name"`
	Brand      string               `json:"brand"`
	Barcode    string               `json:"barcode"`
	Images     []string             `json:"images"`
	IsEnriched bool                 `json:"isEnriched"`
	Attributes product.AttributeSet `json:"attributes"`
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Brand) == "" {
		badRequest(c, errors.New("product_name and brand are required"))
		return
	}
	if err := req.Attributes.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.store.Insert(c.Request.Context(), ownerFrom(c), product.Product{
		Name:       req.Name,
		Brand:      req.Brand,
		Barcode:    req.Barcode,
		Images:     req.Images,
		IsEnriched: req.IsEnriched,
		Attributes: req.Attributes,
	})
	if err != nil {
		h.internalError(c, "Failed to create product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product created", "id": id})
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.store.Find(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.internalError(c, "Failed to list products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

type deleteProductsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h *Handler) DeleteProducts(c *gin.Context) {
	var req deleteProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.store.DeleteMany(c.Request.Context(), req.IDs, ownerFrom(c))
	if err != nil {
		h.internalError(c, "Failed to delete products", err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No products found to delete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Deleted %d product(s)", n)})
}

type enrichProductsRequest struct {
	Products []product.Product `json:"products" binding:"required"`
}

func (h *Handler) EnrichProducts(c *gin.Context) {
	var req enrichProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	report, err := h.enricher.EnrichBatch(c.Request.Context(), ownerFrom(c), req.Products)
	if errors.Is(err, enrich.ErrInvalidBatch) {
		badRequest(c, err)
		return
	}
	if err != nil {
		h.internalError(c, "Failed to enrich products", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": redact.Secrets(err.Error())})
}

func (h *Handler) internalError(c *gin.Context, detail string, err error) {
	h.logger.Error(detail, zap.String("error", redact.Secrets(err.Error())))
	c.JSON(http.StatusInternalServerError, gin.H{"detail": detail})
}
