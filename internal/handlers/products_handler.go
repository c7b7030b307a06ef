package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
	"github.com/imrishuroy/go-product-importflow/internal/identity"
	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
	"github.com/imrishuroy/go-product-importflow/internal/validation"
)

// HandlerConfig groups dependencies for the product and code handlers.
type HandlerConfig struct {
	Coordinator      *lifecycle.Coordinator
	Validator        *validatorv10.Validate
	SweepConcurrency int
	Logger           *slog.Logger
}

// stateFilterPending selects products recorded without a submission code.
const stateFilterPending = "pending"

type submitResult struct {
	Index  int               `json:"index"`
	ID     string            `json:"id,omitempty"`
	SKU    string            `json:"sku"`
	Code   string            `json:"code,omitempty"`
	Status catalog.Status    `json:"status,omitempty"`
	Error  string            `json:"error,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type productSummary struct {
	ID     uuid.UUID      `json:"id"`
	SKU    string         `json:"sku"`
	Code   string         `json:"code,omitempty"`
	Status catalog.Status `json:"status,omitempty"`
}

type productDetail struct {
	ID      uuid.UUID             `json:"id"`
	Code    string                `json:"code,omitempty"`
	Status  catalog.Status        `json:"status,omitempty"`
	Product catalog.Product       `json:"product"`
	Result  *catalog.UploadResult `json:"result"`
}

func (cfg *HandlerConfig) defaults() {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// RegisterProductRoutes registers the /products routes.
func RegisterProductRoutes(r gin.IRouter, cfg HandlerConfig) {
	cfg.defaults()
	coord := cfg.Coordinator
	store := coord.Store()

	r.POST("/products", func(c *gin.Context) {
		ctx := c.Request.Context()

		batch, err := validation.BindProducts(c)
		if err != nil {
			// BindProducts already wrote a 400
			return
		}

		results := make([]submitResult, 0, len(batch))
		created := 0
		for i, p := range batch {
			res := submitResult{Index: i, SKU: p.SKU}
			if fields := validation.Product(cfg.Validator, p); fields != nil {
				res.Error = "validation_failed"
				res.Fields = fields
				results = append(results, res)
				continue
			}

			sub, err := coord.Submit(ctx, p)
			if sub.ID != uuid.Nil {
				res.ID = sub.ID.String()
			}
			if err != nil {
				_, res.Error = errorStatus(err)
				res.Detail = err.Error()
				results = append(results, res)
				continue
			}
			res.Code = sub.Code
			res.Status = catalog.StatusUploaded
			results = append(results, res)
			created++
		}

		status := http.StatusCreated
		if created != len(batch) {
			status = http.StatusMultiStatus
		}
		cfg.Logger.Info("batch submitted", "size", len(batch), "created", created)
		c.JSON(status, gin.H{"created": created, "results": results})
	})

	r.GET("/products", func(c *gin.Context) {
		filter := strings.TrimSpace(c.Query("state"))
		var want catalog.Status
		if filter != "" && filter != stateFilterPending {
			st, err := catalog.ParseStatus(strings.ToUpper(filter))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state", "detail": err.Error()})
				return
			}
			want = st
		}

		entries := store.Entries()
		out := make([]productSummary, 0, len(entries))
		for _, e := range entries {
			switch {
			case filter == stateFilterPending && e.Status != "":
				continue
			case want != "" && e.Status != want:
				continue
			}
			out = append(out, productSummary{ID: e.ID, SKU: e.Product.SKU, Code: e.Code, Status: e.Status})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].SKU != out[j].SKU {
				return out[i].SKU < out[j].SKU
			}
			return out[i].ID.String() < out[j].ID.String()
		})
		c.JSON(http.StatusOK, out)
	})

	r.GET("/products/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		p, found := store.Product(id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_identity"})
			return
		}
		d := productDetail{ID: id, Product: p}
		d.Code, d.Status, _ = store.Status(id)
		if res, ok := store.Result(id); ok {
			d.Result = &res
		}
		c.JSON(http.StatusOK, d)
	})

	r.POST("/products/:id/retry", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		sub, err := coord.Retry(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": sub.ID, "code": sub.Code, "status": catalog.StatusUploaded})
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := identity.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "detail": err.Error()})
		return uuid.Nil, false
	}
	return id, true
}
