package validation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// ErrEmptyBatch is returned for a request without products.
var ErrEmptyBatch = errors.New("batch contains no products")

// BindProducts binds a JSON array of products from the request body.
// If the body is unusable, it writes a 400 response and returns an error for the handler to short-circuit.
// Per-product validation is left to the caller so one bad item does not reject the batch.
func BindProducts(c *gin.Context) ([]catalog.Product, error) {
	var batch []catalog.Product
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return nil, err
	}
	if len(batch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_batch"})
		return nil, ErrEmptyBatch
	}
	if len(batch) > MaxBatchSize {
		err := fmt.Errorf("batch of %d exceeds limit %d", len(batch), MaxBatchSize)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "batch_too_large",
			"msg":   err.Error(),
		})
		return nil, err
	}
	return batch, nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
